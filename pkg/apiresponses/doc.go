// Package apiresponses provides the JSON response helpers shared by the HTTP
// controllers, so every endpoint reports errors in the same shape.
package apiresponses
