// Package cli is the interactive gophauth command-line client.
//
// It reads commands from a line-oriented REPL and drives the HTTP API:
// register, login, me and logout. Passwords are read without echo and
// wiped from memory once sent.
package cli
