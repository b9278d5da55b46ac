package service

import (
	"fmt"

	"github.com/pkordes/cruise-price-tracker/internal/domain"
)

// Notification titles.
const (
	TitleCruiseDrop = "Cruise Price Drop"
	TitleAddonDrop  = "Add-on Price Drop"
	TitleNewOffer   = "New Casino Offer"
)

type message struct {
	title string
	body  string
}

func cruiseDropMessage(label, currency string, current, paid, savings float64) message {
	return message{
		title: TitleCruiseDrop,
		body: fmt.Sprintf("%s\nCurrent: $%.2f %s\nPaid: $%.2f %s\nPotential savings: $%.2f",
			label, current, currency, paid, currency, savings),
	}
}

func addonDropMessage(title, passenger, currency string, current, paid, savings float64) message {
	return message{
		title: TitleAddonDrop,
		body: fmt.Sprintf("%s (%s)\nCurrent: $%.2f %s\nPaid: $%.2f %s\nSavings: $%.2f",
			title, passenger, current, currency, paid, currency, savings),
	}
}

func newOfferMessage(account string, o domain.Offer) message {
	expires := o.ExpiryDate
	if expires == "" {
		expires = "Unknown"
	}
	return message{
		title: TitleNewOffer,
		body: fmt.Sprintf("Account: %s\nOffer code: %s\nType: %s\nExpires: %s",
			account, o.Code, o.Type, expires),
	}
}
