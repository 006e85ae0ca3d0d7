//go:build bptdebug

package bptree

const debugChecks = true
