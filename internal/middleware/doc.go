// Package middleware provides HTTP middleware for the preview server:
// sanitised access logging through the logging package, and Prometheus
// request metrics labelled by route template.
package middleware
