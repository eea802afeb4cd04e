// Package session holds the wallet session model.
package session

import "github.com/solsnap/walletcore/internal/solana"

// Session is the single active wallet session. Address is nil while
// disconnected, and Lamports is nil whenever Address is nil or the balance
// has not been fetched yet.
type Session struct {
	Address    *solana.Address
	AuthToken  string
	Lamports   *uint64
	Connecting bool
}

// Connected reports whether a wallet is authorized.
func (s Session) Connected() bool {
	return s.Address != nil
}

// Balance returns the known balance and whether one has been fetched.
func (s Session) Balance() (uint64, bool) {
	if s.Lamports == nil {
		return 0, false
	}
	return *s.Lamports, true
}
