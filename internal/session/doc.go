// Package session persists the PapersLight state between requests.
//
// StateStore reads and writes application.State through any gorilla/sessions
// Store. Two stores are provided: the stock CookieStore, which keeps the whole
// state in a signed (and optionally encrypted) cookie, and ServerStore, which
// keeps only a signed session ID in the cookie and the encoded values in a
// Backend (SQL repository, in-memory repository, or Redis).
package session
