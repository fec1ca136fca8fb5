// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared across the advisor client.
//
// String helpers (TruncateRunes, TruncateWidth, StringWidth, PadRight)
// are UTF-8 and display-width aware, for trimming chat text to terminal
// columns. AtomicWriteFile persists files with a temp-write, fsync, and
// rename so a crash never leaves a half-written config on disk.
package util
