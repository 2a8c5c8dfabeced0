package database

// Schema and query code are generated from the migrations:
//
//	go generate ./internal/database
//
// generate_schema.go applies every migration to an empty store and dumps
// sqlc/schema.sql, which sqlc then compiles together with sqlc/queries.sql.

//go:generate sh -c "cd ../.. && go run internal/database/tools/generate_schema.go"
//go:generate sh -c "cd ../.. && sqlc generate -f internal/database/sqlc/sqlc.yaml"
