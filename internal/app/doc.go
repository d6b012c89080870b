// Package app provides the application service layer.
//
// Orchestrates use cases: message creation and retrieval, channel CRUD,
// attachment upload URL issuance. Sits between HTTP handlers and domain
// repositories. Depends on domain interfaces, not concrete implementations.
package app
