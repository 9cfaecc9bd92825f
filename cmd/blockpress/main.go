package main

import (
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	fastcdc "github.com/SaveTheRbtz/fastcdc-go"
	"github.com/cespare/xxhash/v2"
	progressbar "github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	blockpress "github.com/blockpress/blockpress-go"
)

func main() {
	var (
		inputFlag, outputFlag, chunkingFlag, modeFlag string
		qualityFlag, windowFlag, blockFlag            int
		decompressFlag, verifyFlag, verboseFlag       bool
	)

	flag.StringVar(&inputFlag, "f", "", "input filename")
	flag.StringVar(&outputFlag, "o", "", "output filename")
	flag.BoolVar(&decompressFlag, "d", false, "decompress instead of compress")
	flag.IntVar(&qualityFlag, "q", 11, "compression quality (lower == faster)")
	flag.IntVar(&windowFlag, "w", 22, "log2 of the encoder window size")
	flag.IntVar(&blockFlag, "b", 0, "log2 of the block size (0 == derive from quality)")
	flag.StringVar(&modeFlag, "m", "generic", "content mode: generic, text or font")
	flag.StringVar(&chunkingFlag, "c", "16:64:1024", "min:avg:max chunking block size (in kb)")
	flag.BoolVar(&verifyFlag, "t", false, "test reading after the write")
	flag.BoolVar(&verboseFlag, "v", false, "be verbose")

	flag.Parse()

	var err error
	var logger *zap.Logger
	if verboseFlag {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal("failed to initialize logger", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if inputFlag == "" || outputFlag == "" {
		logger.Fatal("both input and output files need to be defined")
	}
	if verifyFlag && decompressFlag {
		logger.Fatal("verify only applies when compressing")
	}
	if verifyFlag && outputFlag == "-" {
		logger.Fatal("verify can't be used with stdout output")
	}

	var input *os.File
	if inputFlag == "-" {
		input = os.Stdin
	} else {
		if input, err = os.Open(inputFlag); err != nil {
			logger.Fatal("failed to open input", zap.Error(err))
		}
		defer input.Close()
	}

	var output *os.File
	if outputFlag == "-" {
		output = os.Stdout
	} else {
		output, err = os.OpenFile(outputFlag, os.O_TRUNC|os.O_WRONLY|os.O_CREATE, 0644)
		if err != nil {
			logger.Fatal("failed to open output", zap.Error(err))
		}
		defer output.Close()
	}

	size := int64(-1)
	if fi, err := input.Stat(); err == nil && fi.Mode().IsRegular() {
		size = fi.Size()
	}

	if decompressFlag {
		decompress(logger, input, output, size)
		return
	}

	mode, err := parseMode(modeFlag)
	if err != nil {
		logger.Fatal("failed to parse mode", zap.String("mode", modeFlag), zap.Error(err))
	}
	params := blockpress.NewCompressParams().
		SetMode(mode).
		SetQuality(uint32(qualityFlag)).
		SetWindowBits(uint32(windowFlag)).
		SetBlockBits(uint32(blockFlag))

	c, err := blockpress.NewCompressor(blockpress.WithCLogger(logger))
	if err != nil {
		logger.Fatal("failed to create compressor", zap.Error(err))
	}
	defer c.Close()
	c.SetParams(params)

	chunkParams := strings.SplitN(chunkingFlag, ":", 3)
	if len(chunkParams) != 3 {
		logger.Fatal("failed parse chunker params. len() != 3", zap.Int("actual", len(chunkParams)))
	}
	mustConv := func(s string) int {
		n, err := strconv.Atoi(s)
		if err != nil {
			logger.Fatal("failed to parse int", zap.String("int", s), zap.Error(err))
		}
		return n
	}
	opts := fastcdc.Options{
		MinSize:     mustConv(chunkParams[0]) * 1024,
		AverageSize: mustConv(chunkParams[1]) * 1024,
		MaxSize:     mustConv(chunkParams[2]) * 1024,
	}
	chunker, err := fastcdc.NewChunker(input, opts)
	if err != nil {
		logger.Fatal("failed to create chunker", zap.Error(err))
	}

	bar := progressbar.DefaultBytes(size, "compressing")
	expected := xxhash.New()
	for {
		chunk, err := chunker.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			logger.Fatal("failed to read", zap.Error(err))
		}
		if verifyFlag {
			m, err := expected.Write(chunk.Data)
			if err != nil || m != chunk.Length {
				logger.Fatal("failed to update checksum", zap.Error(err))
			}
		}
		if _, err := c.Compress(blockpress.OpProcess, blockpress.NewReadBuffer(chunk.Data), blockpress.NewWriteBuffer(nil)); err != nil {
			logger.Fatal("failed to compress", zap.Error(err))
		}
		drain(logger, c, output)
		_ = bar.Add(chunk.Length)
	}

	for {
		status, err := c.Compress(blockpress.OpFinish, blockpress.NewReadBuffer(nil), blockpress.NewWriteBuffer(nil))
		if err != nil {
			logger.Fatal("failed to finish stream", zap.Error(err))
		}
		drain(logger, c, output)
		if status == blockpress.CoFinished {
			break
		}
	}
	_ = bar.Finish()

	if verifyFlag {
		verify, err := os.Open(outputFlag)
		if err != nil {
			logger.Fatal("failed to open file for verification", zap.Error(err))
		}
		defer verify.Close()

		actual := xxhash.New()
		decompressTo(logger, verify, actual)

		if actual.Sum64() != expected.Sum64() {
			logger.Fatal("checksum verification failed",
				zap.Uint64("actual", actual.Sum64()), zap.Uint64("expected", expected.Sum64()))
		} else {
			logger.Info("checksum verification succeeded", zap.Uint64("actual", actual.Sum64()))
		}
	}
}

func parseMode(s string) (blockpress.CompressMode, error) {
	switch s {
	case "generic":
		return blockpress.ModeGeneric, nil
	case "text":
		return blockpress.ModeText, nil
	case "font":
		return blockpress.ModeFont, nil
	default:
		return 0, errors.New("unknown mode")
	}
}

// drain moves everything the session retained into the output file.
func drain(logger *zap.Logger, c blockpress.Compressor, output io.Writer) {
	for {
		p := c.TakeOutput(-1)
		if len(p) == 0 {
			return
		}
		if _, err := output.Write(p); err != nil {
			logger.Fatal("failed to write data", zap.Error(err))
		}
	}
}

func decompress(logger *zap.Logger, input io.Reader, output io.Writer, size int64) {
	bar := progressbar.DefaultBytes(size, "decompressing")
	decompressTo(logger, io.TeeReader(input, bar), output)
	_ = bar.Finish()
}

// decompressTo streams one compressed stream from input into output.
func decompressTo(logger *zap.Logger, input io.Reader, output io.Writer) {
	d, err := blockpress.NewDecompressor(blockpress.WithDLogger(logger))
	if err != nil {
		logger.Fatal("failed to create decompressor", zap.Error(err))
	}
	defer d.Close()

	buf := make([]byte, 128<<10)
	for {
		n, err := input.Read(buf)
		if n > 0 {
			in := blockpress.NewReadBuffer(buf[:n])
			for {
				status, derr := d.Decompress(in, blockpress.NewWriteBuffer(nil))
				if derr != nil {
					logger.Fatal("failed to decompress", zap.Error(derr))
				}
				for {
					p := d.TakeOutput(-1)
					if len(p) == 0 {
						break
					}
					if _, werr := output.Write(p); werr != nil {
						logger.Fatal("failed to write data", zap.Error(werr))
					}
				}
				if status == blockpress.DeFinished {
					if in.Len() > 0 {
						logger.Warn("trailing data after stream end", zap.Int("bytes", in.Len()))
					}
					return
				}
				if status == blockpress.DeNeedInput {
					break
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Fatal("input ended before the stream did")
			}
			logger.Fatal("failed to read", zap.Error(err))
		}
	}
}
