package database

// This file documents code generation for the database package.
//
// schema.go mirrors the result of applying every migration and is used by
// tests to initialize in-memory stores without the migration machinery.
// To regenerate it after changing a migration:
//   go generate ./internal/database

//go:generate sh -c "cd ../.. && go run internal/database/tools/generate_schema.go"
