// Package models holds the GORM persistence models. Each model converts to
// and from its domain entity with ToDomain/FromDomain; JSON-shaped fields are
// stored as serialized text in jsonb columns.
package models
