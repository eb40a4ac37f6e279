// Package mail provides the outbound mail transport used by the daily
// dispatcher: an SMTP transport built on gomail with optional per-call retry,
// and the renderer for the daily cat fact message.
package mail
