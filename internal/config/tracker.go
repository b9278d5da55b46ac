package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // schedule timezones must resolve on hosts without zoneinfo

	"gopkg.in/yaml.v3"

	"github.com/pkordes/cruise-price-tracker/internal/domain"
)

// Defaults applied when the tracker file leaves a setting out.
const (
	DefaultTimezone        = "America/New_York"
	DefaultThreshold       = 5.0
	DefaultHistoryDays     = 90
	DefaultCruiseLine      = "royal"
	CruiseLineCelebrity    = "celebrity"
	defaultOfferNotifyFlag = true
)

// DefaultTimes are the scheduled run times when the file names none.
var DefaultTimes = []string{"07:00", "19:00"}

// requiredKeys must all be present at the top level of a strictly loaded file.
var requiredKeys = []string{
	"accounts",
	"cruise_watchlist",
	"addon_tracking",
	"casino_tracking",
	"schedule",
	"notifications",
	"settings",
}

// TrackerFile is the operator-edited YAML document that drives a run.
// It is re-read at the start of every run so edits apply without a restart.
type TrackerFile struct {
	Accounts        []AccountEntry       `yaml:"accounts" json:"accounts"`
	CruiseWatchlist []WatchlistEntry     `yaml:"cruise_watchlist" json:"cruise_watchlist"`
	AddonTracking   AddonTracking        `yaml:"addon_tracking" json:"addon_tracking"`
	CasinoTracking  CasinoTracking       `yaml:"casino_tracking" json:"casino_tracking"`
	Schedule        Schedule             `yaml:"schedule" json:"schedule"`
	Notifications   []NotificationTarget `yaml:"notifications" json:"notifications"`
	Settings        Settings             `yaml:"settings" json:"settings"`
}

// AccountEntry is one vendor login.
type AccountEntry struct {
	Username   string `yaml:"username" json:"username"`
	Password   string `yaml:"password" json:"password"`
	CruiseLine string `yaml:"cruise_line" json:"cruise_line"`
	CNANumber  string `yaml:"cna_number,omitempty" json:"cna_number,omitempty"`
	LastName   string `yaml:"last_name,omitempty" json:"last_name,omitempty"`
}

// Account converts the entry into the domain shape, normalizing the brand.
func (a AccountEntry) Account() domain.Account {
	return domain.Account{
		Username:   a.Username,
		Password:   a.Password,
		CruiseLine: normalizeCruiseLine(a.CruiseLine),
	}
}

// WatchlistEntry is a fare page the operator wants watched.
type WatchlistEntry struct {
	URL       string `yaml:"url" json:"url"`
	PaidPrice Number `yaml:"paid_price" json:"paid_price"`
	Label     string `yaml:"label" json:"label"`
}

// DisplayLabel falls back to a generic name so log lines always have one.
func (w WatchlistEntry) DisplayLabel() string {
	if w.Label != "" {
		return w.Label
	}
	return "watchlist entry"
}

// AddonTracking toggles the add-on sweep and narrows its catalog categories.
type AddonTracking struct {
	Enabled    *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Categories []string `yaml:"categories,omitempty" json:"categories,omitempty"`
}

// IsEnabled defaults to true when the key is absent.
func (a AddonTracking) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// CasinoTracking toggles the offer sweep.
type CasinoTracking struct {
	Enabled         *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	NotifyNewOffers *bool `yaml:"notify_new_offers,omitempty" json:"notify_new_offers,omitempty"`
}

// IsEnabled defaults to true when the key is absent.
func (c CasinoTracking) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// NotifyNew defaults to true when the key is absent.
func (c CasinoTracking) NotifyNew() bool {
	if c.NotifyNewOffers == nil {
		return defaultOfferNotifyFlag
	}
	return *c.NotifyNewOffers
}

// Schedule lists wall-clock run times in a named timezone.
type Schedule struct {
	Times    []string `yaml:"times" json:"times"`
	Timezone string   `yaml:"timezone" json:"timezone"`
}

// ClockTime is one parsed "HH:MM" entry.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseTimes parses every entry of Times, falling back to DefaultTimes when
// the list is empty.
func (s Schedule) ParseTimes() ([]ClockTime, error) {
	times := s.Times
	if len(times) == 0 {
		times = DefaultTimes
	}
	out := make([]ClockTime, 0, len(times))
	for _, raw := range times {
		ct, err := parseClock(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, nil
}

// Location resolves Timezone, defaulting to DefaultTimezone.
func (s Schedule) Location() (*time.Location, error) {
	name := strings.TrimSpace(s.Timezone)
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, domain.ErrValidation)
	}
	return loc, nil
}

func parseClock(raw string) (ClockTime, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return ClockTime{}, fmt.Errorf("invalid time format %q: %w", raw, domain.ErrValidation)
	}
	h, errH := strconv.Atoi(hh)
	m, errM := strconv.Atoi(mm)
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return ClockTime{}, fmt.Errorf("invalid time format %q: %w", raw, domain.ErrValidation)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

// NotificationTarget is a shoutrrr service URL. In YAML it may be written
// either as a bare string or as a mapping with a `url` key.
type NotificationTarget struct {
	URL string `json:"url"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (n *NotificationTarget) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		n.URL = strings.TrimSpace(value.Value)
		return nil
	case yaml.MappingNode:
		var raw struct {
			URL string `yaml:"url"`
		}
		if err := value.Decode(&raw); err != nil {
			return err
		}
		n.URL = strings.TrimSpace(raw.URL)
		return nil
	default:
		return nil
	}
}

// MarshalYAML always writes the mapping form.
func (n NotificationTarget) MarshalYAML() (any, error) {
	return map[string]string{"url": n.URL}, nil
}

// Settings are the tunables of the detector and retention.
type Settings struct {
	Currency            string  `yaml:"currency" json:"currency"`
	MinSavingsThreshold *Number `yaml:"min_savings_threshold,omitempty" json:"min_savings_threshold,omitempty"`
	PriceHistoryDays    *Number `yaml:"price_history_days,omitempty" json:"price_history_days,omitempty"`
	AppriseTest         bool    `yaml:"apprise_test,omitempty" json:"apprise_test,omitempty"`
}

// CurrencyCode defaults to USD.
func (s Settings) CurrencyCode() string {
	if c := strings.TrimSpace(s.Currency); c != "" {
		return c
	}
	return domain.DefaultCurrency
}

// UnmarshalYAML decodes the settings block. A numeric tunable that does not
// parse is left unset so its default applies instead of zero.
func (s *Settings) UnmarshalYAML(value *yaml.Node) error {
	type plain Settings
	if err := value.Decode((*plain)(s)); err != nil {
		return err
	}
	var raw struct {
		Threshold *yaml.Node `yaml:"min_savings_threshold"`
		Days      *yaml.Node `yaml:"price_history_days"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Threshold != nil {
		s.MinSavingsThreshold = optionalNumber(yamlScalar(raw.Threshold))
	}
	if raw.Days != nil {
		s.PriceHistoryDays = optionalNumber(yamlScalar(raw.Days))
	}
	return nil
}

// UnmarshalJSON mirrors UnmarshalYAML for the settings form.
func (s *Settings) UnmarshalJSON(b []byte) error {
	type plain Settings
	if err := json.Unmarshal(b, (*plain)(s)); err != nil {
		return err
	}
	var raw struct {
		Threshold json.RawMessage `json:"min_savings_threshold"`
		Days      json.RawMessage `json:"price_history_days"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Threshold != nil {
		s.MinSavingsThreshold = optionalNumber(jsonScalar(raw.Threshold))
	}
	if raw.Days != nil {
		s.PriceHistoryDays = optionalNumber(jsonScalar(raw.Days))
	}
	return nil
}

func yamlScalar(n *yaml.Node) string {
	if n.Kind != yaml.ScalarNode || n.ShortTag() == "!!null" {
		return ""
	}
	return n.Value
}

func jsonScalar(b json.RawMessage) string {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}

// optionalNumber is nil when text does not parse.
func optionalNumber(text string) *Number {
	f, ok := looseNumber(text)
	if !ok {
		return nil
	}
	n := Number(f)
	return &n
}

// Threshold is the strict lower bound on savings for a notifiable drop.
func (s Settings) Threshold() float64 {
	if s.MinSavingsThreshold == nil {
		return DefaultThreshold
	}
	return float64(*s.MinSavingsThreshold)
}

// HistoryDays is the retention window; non-positive values fall back to the default.
func (s Settings) HistoryDays() int {
	if s.PriceHistoryDays == nil || *s.PriceHistoryDays <= 0 {
		return DefaultHistoryDays
	}
	return int(*s.PriceHistoryDays)
}

// Number is a float that tolerates the loose values operators type into
// YAML: quoted numbers, currency symbols and thousands separators. Anything
// unparseable decodes as zero rather than failing the whole file.
type Number float64

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *Number) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		*n = 0
		return nil
	}
	*n = Number(ParseLooseNumber(value.Value))
	return nil
}

// UnmarshalJSON implements json.Unmarshaler with the same leniency, so the
// settings form may post "$1,200" as well as 1200.
func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "null" {
		*n = 0
		return nil
	}
	*n = Number(ParseLooseNumber(s))
	return nil
}

// ParseLooseNumber strips currency decoration and parses the remainder,
// yielding 0 on failure.
func ParseLooseNumber(s string) float64 {
	f, _ := looseNumber(s)
	return f
}

func looseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(strings.TrimSuffix(s, "USD"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// NotificationURLs returns the non-empty target URLs.
func (f TrackerFile) NotificationURLs() []string {
	var urls []string
	for _, n := range f.Notifications {
		if n.URL != "" {
			urls = append(urls, n.URL)
		}
	}
	return urls
}

// DomainAccounts converts every configured login.
func (f TrackerFile) DomainAccounts() []domain.Account {
	out := make([]domain.Account, 0, len(f.Accounts))
	for _, a := range f.Accounts {
		out = append(out, a.Account())
	}
	return out
}

// Validate checks what the settings editor enforces before saving.
func (f TrackerFile) Validate() error {
	var problems []string
	if len(f.Accounts) == 0 {
		problems = append(problems, "at least one account is required")
	}
	for i, a := range f.Accounts {
		if strings.TrimSpace(a.Username) == "" {
			problems = append(problems, fmt.Sprintf("accounts[%d]: username is required", i))
		}
	}
	for i, w := range f.CruiseWatchlist {
		if strings.TrimSpace(w.URL) == "" {
			problems = append(problems, fmt.Sprintf("cruise_watchlist[%d]: url is required", i))
		}
	}
	if len(f.Schedule.Times) == 0 {
		problems = append(problems, "at least one schedule time is required")
	}
	if _, err := f.Schedule.ParseTimes(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := f.Schedule.Location(); err != nil {
		problems = append(problems, err.Error())
	}
	if f.Settings.Threshold() < 0 {
		problems = append(problems, "min_savings_threshold must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(problems, "; "), domain.ErrValidation)
	}
	return nil
}

// Normalize trims user input and coerces unknown brands to the default.
func (f *TrackerFile) Normalize() {
	f.Accounts = append([]AccountEntry(nil), f.Accounts...)
	for i := range f.Accounts {
		f.Accounts[i].Username = strings.TrimSpace(f.Accounts[i].Username)
		f.Accounts[i].CruiseLine = normalizeCruiseLine(f.Accounts[i].CruiseLine)
	}
	kept := make([]WatchlistEntry, 0, len(f.CruiseWatchlist))
	for _, w := range f.CruiseWatchlist {
		w.URL = strings.TrimSpace(w.URL)
		w.Label = strings.TrimSpace(w.Label)
		if w.URL != "" {
			kept = append(kept, w)
		}
	}
	f.CruiseWatchlist = kept
	targets := make([]NotificationTarget, 0, len(f.Notifications))
	for _, n := range f.Notifications {
		if n.URL = strings.TrimSpace(n.URL); n.URL != "" {
			targets = append(targets, n)
		}
	}
	f.Notifications = targets
	if strings.TrimSpace(f.Schedule.Timezone) == "" {
		f.Schedule.Timezone = DefaultTimezone
	}
	f.Settings.Currency = f.Settings.CurrencyCode()
}

func normalizeCruiseLine(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), CruiseLineCelebrity) {
		return CruiseLineCelebrity
	}
	return DefaultCruiseLine
}

// DefaultTrackerFile is the skeleton the settings editor starts from.
func DefaultTrackerFile() TrackerFile {
	threshold := Number(DefaultThreshold)
	days := Number(DefaultHistoryDays)
	return TrackerFile{
		Accounts:        []AccountEntry{},
		CruiseWatchlist: []WatchlistEntry{},
		AddonTracking:   AddonTracking{Enabled: domain.Ptr(true)},
		CasinoTracking:  CasinoTracking{Enabled: domain.Ptr(true), NotifyNewOffers: domain.Ptr(true)},
		Schedule:        Schedule{Times: append([]string(nil), DefaultTimes...), Timezone: DefaultTimezone},
		Notifications:   []NotificationTarget{},
		Settings: Settings{
			Currency:            domain.DefaultCurrency,
			MinSavingsThreshold: &threshold,
			PriceHistoryDays:    &days,
		},
	}
}

// LoadTrackerFile reads the file strictly: it must exist and carry every
// required top-level key.
func LoadTrackerFile(path string) (TrackerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			sample := filepath.Join(filepath.Dir(path), "config_sample.yaml")
			return TrackerFile{}, fmt.Errorf("config.LoadTrackerFile: config file not found: %s (create it from %s): %w", path, sample, err)
		}
		return TrackerFile{}, fmt.Errorf("config.LoadTrackerFile: %w", err)
	}

	var top map[string]yaml.Node
	if err := yaml.Unmarshal(data, &top); err != nil {
		return TrackerFile{}, fmt.Errorf("config.LoadTrackerFile: parse %s: %w", path, err)
	}
	var missing []string
	for _, k := range requiredKeys {
		if _, ok := top[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return TrackerFile{}, fmt.Errorf("config.LoadTrackerFile: config missing required keys: %s: %w",
			strings.Join(missing, ", "), domain.ErrValidation)
	}

	var f TrackerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return TrackerFile{}, fmt.Errorf("config.LoadTrackerFile: decode %s: %w", path, err)
	}
	return f, nil
}

// LoadTrackerFileLoose never fails on a missing file or missing keys; the
// defaults fill whatever the file leaves out. Used by the settings API and
// the scheduler, which must come up before the operator has written a file.
func LoadTrackerFileLoose(path string) (TrackerFile, error) {
	f := DefaultTrackerFile()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return TrackerFile{}, fmt.Errorf("config.LoadTrackerFileLoose: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return TrackerFile{}, fmt.Errorf("config.LoadTrackerFileLoose: decode %s: %w", path, err)
	}
	if f.Settings.MinSavingsThreshold == nil {
		threshold := Number(DefaultThreshold)
		f.Settings.MinSavingsThreshold = &threshold
	}
	if f.Settings.PriceHistoryDays == nil {
		days := Number(DefaultHistoryDays)
		f.Settings.PriceHistoryDays = &days
	}
	if len(f.Schedule.Times) == 0 {
		f.Schedule.Times = append([]string(nil), DefaultTimes...)
	}
	if f.Schedule.Timezone == "" {
		f.Schedule.Timezone = DefaultTimezone
	}
	return f, nil
}

// SaveTrackerFile normalizes and validates f, copies any existing file to
// "<path>.bak", and atomically replaces path.
func SaveTrackerFile(path string, f TrackerFile) error {
	f.Normalize()
	if err := f.Validate(); err != nil {
		return fmt.Errorf("config.SaveTrackerFile: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("config.SaveTrackerFile: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("config.SaveTrackerFile: encode: %w", err)
	}

	mode := os.FileMode(0o600)
	if existing, err := os.ReadFile(path); err == nil {
		if info, statErr := os.Stat(path); statErr == nil {
			mode = info.Mode().Perm()
		}
		if err := os.WriteFile(path+".bak", existing, mode); err != nil {
			return fmt.Errorf("config.SaveTrackerFile: backup: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config.SaveTrackerFile: read existing: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tracker-*.yaml")
	if err != nil {
		return fmt.Errorf("config.SaveTrackerFile: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("config.SaveTrackerFile: write: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("config.SaveTrackerFile: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config.SaveTrackerFile: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("config.SaveTrackerFile: rename: %w", err)
	}
	return nil
}
