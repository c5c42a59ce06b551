package securemem

import "github.com/awnumar/memguard"

// Init arms memguard's interrupt handler so locked buffers are wiped on SIGINT/SIGTERM.
func Init() {
	memguard.CatchInterrupt()
}

// Purge destroys every locked buffer. Call it on shutdown.
func Purge() {
	memguard.Purge()
}
