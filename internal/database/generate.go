package database

// Code generation for the change log:
//
//	go generate ./internal/database
//
// regenerates sqlc/schema.sql from the migrations, then the sqlc query layer.

//go:generate sh -c "cd ../.. && go run internal/database/tools/generate_schema.go"
//go:generate sh -c "cd ../.. && sqlc generate -f internal/database/sqlc/sqlc.yaml"
