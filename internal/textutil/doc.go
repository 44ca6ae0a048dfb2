// Package textutil provides small text helpers for naming files derived from
// free-form theme names.
package textutil
