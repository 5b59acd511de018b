// Package models holds the GORM rows behind the stock ledger. Domain types in
// internal/domain carry no ORM tags; each model converts to and from its
// domain type with ToDomain and a FromDomain* function.
//
// Files group tables by ledger area: stock.go for ingredient and product
// ledgers and stock documents, production.go for recipes and batches,
// transfer.go, stocktaking.go, and outbox.go for event delivery.
package models
