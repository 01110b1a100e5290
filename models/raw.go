package models

// RawRecord is an invoice exactly as a backend returned it: column names for the relational store,
// attribute names (possibly nested) for the key-value store.
type RawRecord map[string]any
