// Command scriptorium is the administrative CLI for the Scriptorium action
// scheduler. It imports works, inspects and maintains the action queue, and
// runs the daemon in the foreground.
//
// Commands open the queue database directly; SQLite WAL mode lets them run
// alongside a live daemon.
package main
