// Command genesis bootstraps a devnet validator set: it generates N Ed25519
// identities, assigns each equal stake, and writes one .env file per
// validator pre-populated with the shared PEER_VALIDATORS table so
// cmd/peer can be started directly against it.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/latticebft/core/pkg/crypto"
)

func main() {
	n := flag.Int("validators", 4, "number of validator identities to generate")
	stake := flag.Int64("stake", 1, "stake assigned to every validator")
	outDir := flag.String("out", "./devnet", "directory to write per-peer .env files into")
	listenBase := flag.Int("listen-port", 4001, "first libp2p TCP listen port; each peer gets base+index")
	apiBase := flag.Int("api-port", 8080, "first API listen port; each peer gets base+index")
	flag.Parse()

	if *n < 1 {
		fmt.Fprintln(os.Stderr, "genesis: -validators must be at least 1")
		os.Exit(1)
	}

	type identity struct {
		keyHex  string
		seedHex string
	}

	identities := make([]identity, *n)
	for i := range identities {
		seed := make([]byte, 32)
		if _, err := readRandom(seed); err != nil {
			fmt.Fprintf(os.Stderr, "genesis: generate seed %d: %v\n", i, err)
			os.Exit(1)
		}
		kp, err := crypto.FromSeed(seed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "genesis: derive keypair %d: %v\n", i, err)
			os.Exit(1)
		}
		key := kp.PublicKey()
		identities[i] = identity{
			keyHex:  hex.EncodeToString(key[:]),
			seedHex: hex.EncodeToString(seed),
		}
	}

	var validatorEntries []string
	for _, id := range identities {
		validatorEntries = append(validatorEntries, fmt.Sprintf("%s:%d", id.keyHex, *stake))
	}
	validatorsLine := strings.Join(validatorEntries, ",")

	var bootstrapAddrs []string
	for i := range identities {
		bootstrapAddrs = append(bootstrapAddrs, fmt.Sprintf("/ip4/127.0.0.1/tcp/%d", *listenBase+i))
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "genesis: mkdir %s: %v\n", *outDir, err)
		os.Exit(1)
	}

	for i, id := range identities {
		peerDir := filepath.Join(*outDir, fmt.Sprintf("peer%d", i))
		if err := os.MkdirAll(peerDir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "genesis: mkdir %s: %v\n", peerDir, err)
			os.Exit(1)
		}

		// Bootstrap against every other peer's listen address; a peer
		// doesn't need its own address in the list.
		var peerBootstrap []string
		for j, addr := range bootstrapAddrs {
			if j != i {
				peerBootstrap = append(peerBootstrap, addr)
			}
		}

		env := strings.Join([]string{
			fmt.Sprintf("PEER_SELF_KEY=%s", id.keyHex),
			fmt.Sprintf("PEER_KEY_SEED=%s", id.seedHex),
			fmt.Sprintf("PEER_VALIDATORS=%s", validatorsLine),
			fmt.Sprintf("PEER_STORE_PATH=%s", filepath.Join(peerDir, "cells.log")),
			fmt.Sprintf("PEER_META_PATH=%s", filepath.Join(peerDir, "meta")),
			fmt.Sprintf("PEER_LISTEN_ADDR=/ip4/0.0.0.0/tcp/%d", *listenBase+i),
			fmt.Sprintf("PEER_BOOTSTRAP=%s", strings.Join(peerBootstrap, ",")),
			fmt.Sprintf("PEER_API_ADDR=127.0.0.1:%d", *apiBase+i),
			"",
		}, "\n")

		envPath := filepath.Join(peerDir, ".env")
		if err := os.WriteFile(envPath, []byte(env), 0o600); err != nil {
			fmt.Fprintf(os.Stderr, "genesis: write %s: %v\n", envPath, err)
			os.Exit(1)
		}
		fmt.Printf("peer %d: key=%s -> %s\n", i, id.keyHex, envPath)
	}

	fmt.Printf("\ngenerated %d validators, %d stake each, shared table:\n%s\n", *n, *stake, validatorsLine)
}

func readRandom(b []byte) (int, error) {
	f, err := os.Open("/dev/urandom")
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return f.Read(b)
}
