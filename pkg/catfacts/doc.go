// Package catfacts exposes the cat fact and subscription endpoints.
package catfacts
