// Package domain contains the core concepts of the conversion service:
// uploads, converted outputs, per-file errors and the converter contract.
// Keep this package free of transport (HTTP) and infrastructure concerns.
package domain
