// Package mocks provides generated mock implementations for testing.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe
// mocks for port interfaces. To regenerate after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mailer := mocks.NewMockMailer(ctrl)
//	mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)
package mocks

// Generate mock for the Mailer interface from internal/ports.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=mailer_mock.go github.com/stormgate/auth-api/internal/ports Mailer
