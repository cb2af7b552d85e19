// Package queue holds the mail queue backends that receive newsletter
// messages from a dispatch run. Messages are JSON-encoded
// domain.NewsletterMessage values; rendering and delivery belong to the
// mail workers that consume them.
package queue
