// Package mocks provides mock implementations for testing the authentication
// core.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the external backend ports. Hand-written in-memory fakes for the storage and
// per-request ports live in the auth subpackage; gomock is used where tests
// need fine-grained call expectations against a remote system.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	t.Cleanup(ctrl.Finish)
//	catalog := mocks.NewMockCatalog(ctrl)
//	catalog.EXPECT().PatronLogin(gomock.Any(), "u", "p").Return(patron, nil)
package mocks

// Generate mock for the Catalog interface: PatronLogin, ChangePassword,
// PasswordPolicy.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=catalog_mock.go github.com/librarium/discovery-auth/internal/ports Catalog

// Generate mock for the DirectoryClient interface: AuthenticateUser.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=directory_client_mock.go github.com/librarium/discovery-auth/internal/ports DirectoryClient

// Generate mock for the TicketValidator interface: Validate.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=ticket_validator_mock.go github.com/librarium/discovery-auth/internal/ports TicketValidator
