package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mtrofin/gematria/datasets"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

const usage = `findaccessedaddrs

findaccessedaddrs forks and ptraces this process to discover which memory
addresses a basic block of raw x86-64 machine code reads or writes.
`

type result struct {
	CodeLocation   uintptr           `json:"code_location"`
	BlockSize      uintptr           `json:"block_size"`
	AccessedBlocks []uintptr         `json:"accessed_blocks"`
	InitialRegs    datasets.Registers `json:"initial_regs"`
}

func main() {
	app := cli.NewApp()
	app.Name = "findaccessedaddrs"
	app.Usage = usage

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "block",
			Usage: "hex-encoded basic block machine code, e.g. 488b07",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: "log categories to include (debug, info, warning, error, fatal)",
		},
	}

	app.Before = func(ctx *cli.Context) error {
		level, err := logrus.ParseLevel(ctx.GlobalString("log-level"))
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("log-level option %q not recognized", ctx.GlobalString("log-level")), 1)
		}
		logrus.SetLevel(level)
		return nil
	}

	app.Action = func(ctx *cli.Context) error {
		blockHex := ctx.String("block")
		if blockHex == "" {
			return cli.NewExitError("missing required --block flag", 1)
		}

		block, err := hex.DecodeString(blockHex)
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("decoding --block: %v", err), 1)
		}

		addrs, err := datasets.FindAccessedAddrs(block)
		if err != nil {
			logrus.WithError(err).Error("failed to find accessed addresses")
			return cli.NewExitError(err.Error(), 1)
		}

		out := result{
			CodeLocation:   addrs.CodeLocation,
			BlockSize:      addrs.BlockSize,
			AccessedBlocks: addrs.AccessedBlocks,
			InitialRegs:    addrs.InitialRegs,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
