// Package routetable implements the static prefix-to-backend mapping used to
// resolve inbound request paths to downstream services. The table is built
// once at startup and is read-only afterwards; resolution preserves
// configuration order so overlapping prefixes match deterministically.
package routetable
