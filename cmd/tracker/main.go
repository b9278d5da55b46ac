// Package main is the entry point for the tracker binary.
// Its sole responsibility is wiring dependencies together and dispatching
// to the serve, run, notify-test and migrate commands. No business logic
// belongs here.
package main

func main() {
	Execute()
}
