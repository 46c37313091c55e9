// Hasher: Neural Inference Engine Powered by SHA-256 ASICs
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Command usbsim runs a registered scenario against the in-process line
// driver and simulated device, reporting pass/fail the way a harness-driven
// smoke test would: exit 0 on success, non-zero on an invocation error or a
// failed scenario assertion.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"usbsim/internal/config"
	"usbsim/internal/firmware"
	"usbsim/internal/history"
	"usbsim/internal/hoststat"
	"usbsim/internal/scenario"
	"usbsim/internal/statusapi"
	"usbsim/internal/trace"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	if os.Args[1] == "monitor" {
		runMonitor(os.Args[2:])
		return
	}

	runScenario(os.Args[1:])
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  usbsim <scenario-name> [flags] [firmware-image]")
	fmt.Fprintln(os.Stderr, "  usbsim monitor [--serve <addr>]")
	fmt.Fprintln(os.Stderr, "\nflags:")
	fmt.Fprintln(os.Stderr, "  --no-tui         plain progress bar instead of the interactive dashboard")
	fmt.Fprintln(os.Stderr, "  --copy-trace     copy the run summary to the system clipboard on exit")
	fmt.Fprintln(os.Stderr, "  --history <path> scenario-run history database (default: from config)")
	fmt.Fprintln(os.Stderr, "\nscenarios:")
	for _, name := range scenario.Names() {
		fmt.Fprintf(os.Stderr, "  %s\n", name)
	}
}

// runMonitor implements the "usbsim monitor" subcommand: a one-shot host
// resource snapshot, and, with --serve, a long-running status API.
func runMonitor(args []string) {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	serveAddr := fs.String("serve", "", "start the scenario status HTTP API on this address (e.g. :8080)")
	fs.Parse(args)

	snap, err := hoststat.Read()
	if err != nil {
		fmt.Fprintln(os.Stderr, "monitor:", err)
		os.Exit(1)
	}
	fmt.Println(snap.String())

	if *serveAddr == "" {
		return
	}

	cfg := config.Load()
	store, err := history.Open(cfg.HistoryDBPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "monitor: open history:", err)
		os.Exit(1)
	}
	defer store.Close()

	srv := statusapi.New(store)
	fmt.Printf("status API listening on %s\n", *serveAddr)
	if err := srv.ListenAndServe(*serveAddr); err != nil {
		fmt.Fprintln(os.Stderr, "monitor: status API:", err)
		os.Exit(1)
	}
}

// runScenario implements the default "usbsim <scenario-name> ..." form.
func runScenario(args []string) {
	scenarioName := args[0]

	fs := flag.NewFlagSet(scenarioName, flag.ExitOnError)
	noTUI := fs.Bool("no-tui", false, "render plain progress output instead of the dashboard")
	copyTrace := fs.Bool("copy-trace", false, "copy the run summary to the clipboard")
	historyPath := fs.String("history", "", "path to the scenario-run history database")
	fs.Parse(args[1:])

	if _, ok := scenario.Get(scenarioName); !ok {
		fmt.Fprintf(os.Stderr, "usbsim: unknown scenario %q\n\n", scenarioName)
		usage()
		os.Exit(2)
	}

	cfg := config.Load()

	firmwarePath := cfg.DefaultFirmware
	if fs.NArg() > 0 {
		firmwarePath = fs.Arg(0)
	}

	var fwImage *firmware.Image
	if info, err := os.Stat(firmwarePath); err == nil && !info.IsDir() {
		img, err := firmware.LoadROM(firmwarePath, cfg.MaxROMSize)
		if err != nil {
			fmt.Fprintln(os.Stderr, "usbsim:", err)
			os.Exit(1)
		}
		fwImage = img
	}

	histPath := *historyPath
	if histPath == "" {
		histPath = cfg.HistoryDBPath
	}
	store, err := history.Open(histPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "usbsim:", err)
		os.Exit(1)
	}
	defer store.Close()

	var sink trace.Sink = trace.NopSink{}
	var traceFile *os.File
	var csvSink *trace.CSVSink
	if cfg.TraceCSVPath != "" {
		f, err := os.Create(cfg.TraceCSVPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "usbsim: trace:", err)
			os.Exit(1)
		}
		traceFile = f
		csvSink = trace.NewCSVSink(f)
		sink = csvSink
	}

	started := time.Now()
	var runErr error
	if *noTUI {
		runErr = runWithProgress(scenarioName, sink)
	} else {
		runErr = runWithDashboard(scenarioName, sink, fwImage)
	}

	if csvSink != nil {
		csvSink.Flush()
		traceFile.Close()
	}

	run := history.Run{
		Scenario:  scenarioName,
		Firmware:  firmwarePath,
		Passed:    runErr == nil,
		StartedAt: started,
		Duration:  time.Since(started),
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := store.Record(run); err != nil {
		fmt.Fprintln(os.Stderr, "usbsim: record run history:", err)
	}

	if *copyTrace {
		// The summary renders through the same lipgloss styles as the
		// dashboard; clipboards want plain text.
		if err := clipboard.WriteAll(ansi.Strip(describeRun(run))); err != nil {
			fmt.Fprintln(os.Stderr, "usbsim: copy-trace:", err)
		}
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "scenario %q failed: %v\n", scenarioName, runErr)
		os.Exit(1)
	}
	fmt.Printf("scenario %q passed in %s\n", scenarioName, run.Duration.Round(time.Microsecond))
}

func describeRun(r history.Run) string {
	if r.Passed {
		return fmt.Sprintf("%s: %s (%s)", r.Scenario, passStyle.Render("PASSED"), r.Duration.Round(time.Microsecond))
	}
	return fmt.Sprintf("%s: %s (%s): %s", r.Scenario, failStyle.Render("FAILED"), r.Duration.Round(time.Microsecond), r.Error)
}

// runWithProgress is the --no-tui path: an mpb bar standing in for the
// dashboard's spinner, since a single in-process scenario run has no
// sub-steps to report progress against.
func runWithProgress(name string, sink trace.Sink) error {
	p := mpb.New(mpb.WithWidth(80))
	bar := p.AddBar(1,
		mpb.PrependDecorators(decor.Name(fmt.Sprintf("%s: ", name))),
		mpb.AppendDecorators(decor.OnComplete(decor.Name("running"), "done")),
	)

	err := scenario.Execute(name, sink)
	bar.Increment()
	p.Wait()

	if err != nil {
		fmt.Println("FAIL:", err)
		return err
	}
	fmt.Println("PASS")
	return nil
}

// runWithDashboard is the default path: a bubbletea program that runs the
// scenario in the background and renders its outcome once it completes.
func runWithDashboard(name string, sink trace.Sink, fw *firmware.Image) error {
	model := newDashboardModel(name, sink, fw)
	program := tea.NewProgram(model, tea.WithAltScreen())

	final, err := program.Run()
	if err != nil {
		return err
	}
	return final.(dashboardModel).err
}
