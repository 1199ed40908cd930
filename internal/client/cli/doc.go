// Package cli implements the interactive linetrack terminal client.
//
// The REPL (see runREPL) dispatches single-word commands to the App. Session
// state is owned by the session.Manager; the CLI only renders it. Credentials
// never pass through this package beyond the login prompt: the HTTP cookie jar
// inside the api.Client carries them.
//
// Commands
//
//	Not logged in:
//	  - help           — show available commands
//	  - login          — authenticate
//	  - status         — show session state
//	  - exit | quit    — leave the program
//
//	Logged in:
//	  - help           — show available commands
//	  - list           — list shift logs
//	  - add            — record a shift log (interactive prompts)
//	  - attach         — get an upload URL for a shift-log photo
//	  - status         — show session state
//	  - refresh        — force a credential renewal
//	  - logout         — log out of this device
//	  - logoutall      — log out of every device
//	  - exit | quit    — leave the program
package cli
