// Command example plays one CoinJoin round in process: a taker and two
// makers exchange a PoDLE commitment, offers, the unsigned transaction and
// signatures over channels, then the taker spends a fidelity bond through a
// PSBT.
package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/L3ftBlank/joinmarket-ng/pkg/coinjoin"
	"github.com/L3ftBlank/joinmarket-ng/pkg/commitmentdb"
	"github.com/L3ftBlank/joinmarket-ng/pkg/config"
	"github.com/L3ftBlank/joinmarket-ng/pkg/math/sample"
	"github.com/L3ftBlank/joinmarket-ng/pkg/nums"
	"github.com/L3ftBlank/joinmarket-ng/pkg/pool"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/decred/slog"
)

const cjAmount btcutil.Amount = 1_000_000

func main() {
	configPath := flag.String("config", "", "path to a JSON configuration file")
	flag.Parse()

	cfg := config.Default()
	cfg.Network = "regtest"
	cfg.CommitmentDB = filepath.Join(os.TempDir(), "joinmarket-example-commitments.db")
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	backend := slog.NewBackend(os.Stdout)
	if _, err := run(context.Background(), cfg, backend); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// storePath gives each maker its own database next to path.
func storePath(path, nick string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + nick + ext
}

type result struct {
	signed []byte
	bond   string
}

func run(ctx context.Context, cfg *config.Config, backend *slog.Backend) (*result, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	log := backend.Logger("EXMP")
	cjLog := backend.Logger("CJ")
	dbLog := backend.Logger("CMDB")
	for _, l := range []slog.Logger{log, cjLog, dbLog} {
		l.SetLevel(level)
	}

	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	builder, err := cfg.Builder(cjLog)
	if err != nil {
		return nil, err
	}
	cache := nums.NewCache()
	start := time.Now()
	pl := pool.NewPool(cfg.Workers)
	if err = cache.Warm(ctx, pl, len(cfg.PoDLE.Indices())); err != nil {
		return nil, err
	}
	log.Infof("derived %d NUMS points with %d workers in %v", cache.Len(), pl.Workers(), time.Since(start))

	// a fresh taker seed keeps its commitments unused across runs
	seed := sample.Scalar(rand.Reader).Bytes()
	taker, err := newWallet("taker", seed, params)
	if err != nil {
		return nil, err
	}
	for i, v := range []btcutil.Amount{700_000, 450_000} {
		if err = taker.fund(uint32(i), v); err != nil {
			return nil, err
		}
	}

	var makers []*maker
	for i, fees := range [][2]btcutil.Amount{{1_000, 0}, {250, 500}} {
		name := fmt.Sprintf("maker%d", i+1)
		seed := sha256.Sum256([]byte("joinmarket example wallet " + name))
		w, err := newWallet(name, seed[:], params)
		if err != nil {
			return nil, err
		}
		for j, v := range []btcutil.Amount{800_000, 600_000} {
			if err = w.fund(uint32(j), v); err != nil {
				return nil, err
			}
		}
		store, err := commitmentdb.Open(storePath(cfg.CommitmentDB, name), dbLog)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		makers = append(makers, &maker{wallet: w, cjFee: fees[0], txFee: fees[1], store: store})
	}

	names := []string{taker.name}
	for _, m := range makers {
		names = append(names, m.name)
	}
	e := &env{cfg: cfg, builder: builder, cache: cache, net: newNetwork(names)}

	signed, err := runRound(ctx, e, taker, makers, cjAmount, log)
	if err != nil {
		return nil, err
	}
	txid, err := coinjoin.GetTxid(signed)
	if err != nil {
		return nil, err
	}
	log.Infof("signed CoinJoin %s (%d bytes)", txid, len(signed))
	for _, m := range makers {
		used, err := m.store.Count()
		if err != nil {
			return nil, err
		}
		log.Infof("%s has seen %d commitments", m.name, used)
	}
	log.Debugf("raw transaction %s", hex.EncodeToString(signed))

	destination, err := taker.address(0, 51)
	if err != nil {
		return nil, err
	}
	bond, err := spendBond(taker, 800_000, 5_000_000, 500, destination, log)
	if err != nil {
		return nil, err
	}
	log.Infof("bond spend PSBT %s", bond)
	return &result{signed: signed, bond: bond}, nil
}
