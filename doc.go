// Package imapio walks IMAP mailboxes and moves MIME messages in and out of them.
//
// It covers the handful of things a mailbox archiver or migrator needs:
//
//   - Connecting over TLS and authenticating with LOGIN, PLAIN or XOAUTH2
//   - Listing folders and deriving comparable tags from their names
//   - Walking messages folder by folder, filtered by tags and a search criterion,
//     without letting one broken folder or message stop the walk
//   - Reading and changing message flags
//   - Saving messages (optionally gzip or mbox), listing and decoding their parts
//   - Building MIME messages from text, HTML and files and appending them to a folder
//
// A Session talks to the server through the small Transport interface. Dialer is
// the bundled implementation; anything else that can issue the same commands can
// be plugged in instead.
package imapio
