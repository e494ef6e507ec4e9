// Package bootstrap creates a new database with its first admin operator.
package bootstrap

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/erazemk/foodmap/internal/auth"
	"github.com/erazemk/foodmap/internal/db"
	"github.com/erazemk/foodmap/internal/model"
	"github.com/erazemk/foodmap/internal/store"
)

// PasswordLength is the length of generated passwords.
const PasswordLength = 16

// InitDatabase creates a new database, applies the schema, and creates the
// admin operator with a generated password. The file is removed again if
// any step fails.
func InitDatabase(path, adminUsername string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}

	fail := func(err error) (*sql.DB, string, error) {
		database.Close()
		os.Remove(path)
		return nil, "", err
	}

	if err := db.EnsureSchema(database); err != nil {
		return fail(fmt.Errorf("ensuring schema: %w", err))
	}

	password, err := CreateOperator(context.Background(), database, adminUsername, model.RoleAdmin)
	if err != nil {
		return fail(err)
	}

	return database, password, nil
}

// CreateOperator creates an operator account with a generated password and
// returns the password.
func CreateOperator(ctx context.Context, database *sql.DB, username, role string) (string, error) {
	password, err := GeneratePassword(PasswordLength)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	if _, err := store.CreateUser(ctx, database, username, hash, role); err != nil {
		return "", fmt.Errorf("creating %s user: %w", role, err)
	}
	return password, nil
}

// PrintInitResult prints the database initialization result.
func PrintInitResult(w io.Writer, dbPath, username, password string) {
	fmt.Fprintf(w, "Database created: %s\n", dbPath)
	fmt.Fprintln(w, "Schema initialized.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Admin account created:")
	fmt.Fprintf(w, "  Username: %s\n", username)
	fmt.Fprintf(w, "  Password: %s\n", password)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Save this password, it cannot be recovered.")
	fmt.Fprintln(w, "Change it with PUT /api/auth/password after logging in.")
}

// GeneratePassword creates a random password of the given length.
func GeneratePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
