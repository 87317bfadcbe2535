/*
 * Copyright 2025 Scholarsys Labs.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package db

import (
	"errors"
	"testing"
)

func TestConnURL_DefaultsPortAndSSLMode(t *testing.T) {
	t.Parallel()

	u, err := connURL(&Config{
		Host:     "postgres-rw",
		Database: "paperscout",
	})
	if err != nil {
		t.Fatalf("connURL error: %v", err)
	}

	if got := u.Host; got != "postgres-rw:5432" {
		t.Fatalf("host=%q, want %q", got, "postgres-rw:5432")
	}

	if got := u.Query().Get("sslmode"); got != "disable" {
		t.Fatalf("sslmode=%q, want %q", got, "disable")
	}

	if got := u.Path; got != "/paperscout" {
		t.Fatalf("path=%q, want %q", got, "/paperscout")
	}
}

func TestConnURL_CarriesCredentialsAndApplicationName(t *testing.T) {
	t.Parallel()

	u, err := connURL(&Config{
		Host:            "postgres-rw",
		Port:            5433,
		Database:        "paperscout",
		Username:        "scout",
		Password:        "s3cret",
		SSLMode:         "require",
		ApplicationName: "paperscout",
	})
	if err != nil {
		t.Fatalf("connURL error: %v", err)
	}

	if got := u.User.Username(); got != "scout" {
		t.Fatalf("username=%q, want %q", got, "scout")
	}

	if pw, ok := u.User.Password(); !ok || pw != "s3cret" {
		t.Fatalf("password=%q ok=%v, want %q", pw, ok, "s3cret")
	}

	if got := u.Host; got != "postgres-rw:5433" {
		t.Fatalf("host=%q, want %q", got, "postgres-rw:5433")
	}

	q := u.Query()
	if got := q.Get("sslmode"); got != "require" {
		t.Fatalf("sslmode=%q, want %q", got, "require")
	}

	if got := q.Get("application_name"); got != "paperscout" {
		t.Fatalf("application_name=%q, want %q", got, "paperscout")
	}
}

func TestConnURL_UsernameWithoutPassword(t *testing.T) {
	t.Parallel()

	u, err := connURL(&Config{
		Host:     "postgres-rw",
		Database: "paperscout",
		Username: "scout",
	})
	if err != nil {
		t.Fatalf("connURL error: %v", err)
	}

	if _, ok := u.User.Password(); ok {
		t.Fatal("password should be absent")
	}

	if got := u.User.Username(); got != "scout" {
		t.Fatalf("username=%q, want %q", got, "scout")
	}
}

func TestConnURL_RequiresHost(t *testing.T) {
	t.Parallel()

	_, err := connURL(&Config{Database: "paperscout"})
	if !errors.Is(err, ErrDatabaseHostRequired) {
		t.Fatalf("error=%v, want %v", err, ErrDatabaseHostRequired)
	}
}

func TestConnURL_RequiresDatabase(t *testing.T) {
	t.Parallel()

	_, err := connURL(&Config{Host: "postgres-rw"})
	if !errors.Is(err, ErrDatabaseNameRequired) {
		t.Fatalf("error=%v, want %v", err, ErrDatabaseNameRequired)
	}
}
