// Package textutil builds filesystem-safe names for recordings.
//
// Names are NFC-normalized before sanitizing so the same title typed on
// different platforms maps to the same file, and length limits count runes,
// not bytes.
package textutil
