// Package dispatch runs one notification cycle: pick a random cat fact, list
// the subscribers and mail the fact to each of them in turn.
package dispatch
