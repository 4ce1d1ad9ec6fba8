// Package logging provides opt-in file-based logging with rotation for
// memoryd. By default logs are written to ~/.workmem/logs/memoryd.log; in
// hook mode (see SetupHookMode) stderr is never written to, since every
// hook-script subcommand's stdout/stderr must carry nothing but the one
// JSON document the caller expects.
package logging
