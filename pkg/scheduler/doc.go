// Package scheduler triggers one dispatch cycle per day at local midnight.
package scheduler
