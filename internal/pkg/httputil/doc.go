// Package httputil provides the JSON response helpers shared by the admin
// API handlers, so every endpoint emits the same envelope and logs through
// the same logger.
package httputil
