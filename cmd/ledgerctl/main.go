// Command ledgerctl is a small inspection CLI around the ledgercore core
// package: validating a genesis spec, verifying a block summary file, and
// reporting trigger-set shard statistics. It does not implement P2P,
// consensus, or the HTTP/streaming API — those are out of the core's scope
// and belong to a node binary that embeds this module.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/synnergy-network/ledgercore/config"
	"github.com/synnergy-network/ledgercore/core"
)

var log = logrus.New()

func main() {
	rootCmd := &cobra.Command{Use: "ledgerctl"}
	rootCmd.AddCommand(genesisCmd())
	rootCmd.AddCommand(blockCmd())
	rootCmd.AddCommand(triggersCmd())
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("ledgerctl failed")
		os.Exit(1)
	}
}

func genesisCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "genesis"}
	cmd.AddCommand(genesisValidateCmd())
	return cmd
}

func genesisValidateCmd() *cobra.Command {
	var authorityFlag string
	var privKeyHex string

	c := &cobra.Command{
		Use:   "validate [genesis.yaml]",
		Short: "build and structurally validate a genesis block from a genesis spec",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := config.LoadGenesisSpec(args[0])
			if err != nil {
				return err
			}

			authority, err := core.ParseAccountId(authorityFlag)
			if err != nil {
				return fmt.Errorf("parse authority: %w", err)
			}

			priv, err := ethcrypto.HexToECDSA(privKeyHex)
			if err != nil {
				return fmt.Errorf("load authority private key: %w", err)
			}

			block, err := config.BuildGenesisBlock(spec, authority, priv)
			if err != nil {
				return fmt.Errorf("build genesis block: %w", err)
			}

			log.WithFields(logrus.Fields{
				"height":       block.Header().Height,
				"hash":         block.Hash().String(),
				"transactions": len(block.Transactions()),
			}).Info("genesis block is structurally valid")
			return nil
		},
	}
	c.Flags().StringVar(&authorityFlag, "authority", "", "genesis authority account id (signatory@domain)")
	c.Flags().StringVar(&privKeyHex, "priv", "", "hex-encoded ECDSA private key signing the genesis block")
	_ = c.MarkFlagRequired("authority")
	_ = c.MarkFlagRequired("priv")
	return c
}

func blockCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "block"}
	cmd.AddCommand(blockVerifyCmd())
	return cmd
}

// blockSummaryFile mirrors the JSON block summary ledgerctl verifies: the
// header fields, the ordered transaction hashes the header commits to, and
// the signature list. Hashes and signatures are hex-encoded.
type blockSummaryFile struct {
	Header struct {
		Height           uint64 `json:"height"`
		PrevBlockHash    string `json:"prev_block_hash"`
		TransactionsHash string `json:"transactions_hash"`
		CreationTimeMs   uint64 `json:"creation_time_ms"`
		ViewChangeIndex  uint32 `json:"view_change_index"`
	} `json:"header"`
	TransactionHashes []string `json:"transaction_hashes"`
	Signatures        []struct {
		TopologyIndex uint64 `json:"topology_index"`
		Signature     string `json:"signature"`
	} `json:"signatures"`
}

func parseHash(s string) (core.Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return core.Hash{}, fmt.Errorf("decode hash %q: %w", s, err)
	}
	if len(b) != 32 {
		return core.Hash{}, fmt.Errorf("hash %q must be 32 bytes, got %d", s, len(b))
	}
	var h core.Hash
	copy(h[:], b)
	return h, nil
}

func blockVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [block.json]",
		Short: "verify a block summary: merkle commitment, header rules, signature set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read block summary: %w", err)
			}
			var f blockSummaryFile
			if err := json.Unmarshal(raw, &f); err != nil {
				return fmt.Errorf("parse block summary: %w", err)
			}

			header := core.BlockHeader{
				Height:          f.Header.Height,
				CreationTimeMs:  f.Header.CreationTimeMs,
				ViewChangeIndex: f.Header.ViewChangeIndex,
			}
			if f.Header.PrevBlockHash != "" {
				prev, err := parseHash(f.Header.PrevBlockHash)
				if err != nil {
					return err
				}
				header.PrevBlockHash = &prev
			}
			txsHash, err := parseHash(f.Header.TransactionsHash)
			if err != nil {
				return err
			}
			header.TransactionsHash = txsHash

			leaves := make([]core.Hash, len(f.TransactionHashes))
			for i, s := range f.TransactionHashes {
				if leaves[i], err = parseHash(s); err != nil {
					return err
				}
			}
			if err := core.VerifyHeaderCommitment(header, leaves); err != nil {
				return err
			}

			sigs := make([]core.BlockSignature, len(f.Signatures))
			for i, s := range f.Signatures {
				sig, err := hex.DecodeString(s.Signature)
				if err != nil {
					return fmt.Errorf("decode signature %d: %w", i, err)
				}
				sigs[i] = core.BlockSignature{TopologyIndex: s.TopologyIndex, Signature: sig}
			}
			if err := core.VerifyBlockSignatureSet(sigs, header.Height == 1); err != nil {
				return err
			}

			log.WithFields(logrus.Fields{
				"height":       header.Height,
				"hash":         header.Hash().String(),
				"transactions": len(leaves),
				"signatures":   len(sigs),
			}).Info("block summary is structurally valid")
			return nil
		},
	}
}

func triggersCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "triggers-stats",
		Short: "print an empty trigger set's shard layout as a smoke test",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := core.NewWasmEngine(0)
			if err != nil {
				return fmt.Errorf("construct wasm engine: %w", err)
			}
			ts := core.NewTriggerSet(engine)
			counts := ts.ShardCounts()
			stats := map[string]int{
				"data":     counts[core.EventTypeData],
				"pipeline": counts[core.EventTypePipeline],
				"time":     counts[core.EventTypeTime],
				"by_call":  counts[core.EventTypeExecuteTrigger],
			}
			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	return c
}
