// Package testsupport holds helpers shared by package tests: temp-dir
// configs, stub ffprobe/ffmpeg/detector executables, and ledger setup.
package testsupport
