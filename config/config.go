// Package config provides a reusable loader for ledgercore configuration
// files and environment variables, and assembles the genesis block from a
// YAML genesis spec. It is versioned so that applications can depend on a
// stable API contract.
//
// Version: v0.1.0
package config

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/synnergy-network/ledgercore/core"
	"github.com/synnergy-network/ledgercore/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config mirrors a node's YAML configuration file. Only the fields this
// repository's core cares about are modeled; everything else (networking,
// consensus voting, storage paths) belongs to external collaborators and is
// carried through as opaque strings for a node binary to interpret.
type Config struct {
	Network struct {
		ChainId     string `yaml:"chain_id"`
		GenesisFile string `yaml:"genesis_file"`
	} `yaml:"network"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`

	Parameters ParametersSpec `yaml:"parameters"`
}

// ParametersSpec is the YAML-facing mirror of core.Parameters. Every field
// is optional; zero/absent fields fall back to core's defaults. It exists
// because core.Parameters' NonZeroU64 fields enforce their invariant at
// construction and so cannot be unmarshaled into directly.
type ParametersSpec struct {
	Sumeragi struct {
		BlockTimeMs     uint64 `yaml:"block_time_ms"`
		CommitTimeMs    uint64 `yaml:"commit_time_ms"`
		MaxClockDriftMs uint64 `yaml:"max_clock_drift_ms"`
	} `yaml:"sumeragi"`

	Block struct {
		MaxTransactions uint64 `yaml:"max_transactions"`
	} `yaml:"block"`

	Transaction struct {
		MaxInstructions   uint64 `yaml:"max_instructions"`
		SmartContractSize uint64 `yaml:"smart_contract_size"`
	} `yaml:"transaction"`

	SmartContract struct {
		Fuel   uint64 `yaml:"fuel"`
		Memory uint64 `yaml:"memory"`
	} `yaml:"smart_contract"`

	Executor struct {
		Fuel   uint64 `yaml:"fuel"`
		Memory uint64 `yaml:"memory"`
	} `yaml:"executor"`
}

// Resolve converts a ParametersSpec into a core.Parameters, starting from
// core.DefaultParameters() and overriding only the fields the spec set
// (non-zero). Returns a decode-time error if any set field fails core's
// NonZeroU64 validation.
func (s ParametersSpec) Resolve() (core.Parameters, error) {
	p := core.DefaultParameters()

	if v := s.Sumeragi.BlockTimeMs; v != 0 {
		p.Sumeragi.BlockTimeMs = v
	}
	if v := s.Sumeragi.CommitTimeMs; v != 0 {
		p.Sumeragi.CommitTimeMs = v
	}
	if v := s.Sumeragi.MaxClockDriftMs; v != 0 {
		p.Sumeragi.MaxClockDriftMs = v
	}

	if v := s.Block.MaxTransactions; v != 0 {
		n, err := core.NewNonZeroU64(v)
		if err != nil {
			return core.Parameters{}, utils.Wrap(err, "block.max_transactions")
		}
		p.Block.MaxTransactions = n
	}

	if v := s.Transaction.MaxInstructions; v != 0 {
		n, err := core.NewNonZeroU64(v)
		if err != nil {
			return core.Parameters{}, utils.Wrap(err, "transaction.max_instructions")
		}
		p.Transaction.MaxInstructions = n
	}
	if v := s.Transaction.SmartContractSize; v != 0 {
		n, err := core.NewNonZeroU64(v)
		if err != nil {
			return core.Parameters{}, utils.Wrap(err, "transaction.smart_contract_size")
		}
		p.Transaction.SmartContractSize = n
	}

	if v := s.SmartContract.Fuel; v != 0 {
		n, err := core.NewNonZeroU64(v)
		if err != nil {
			return core.Parameters{}, utils.Wrap(err, "smart_contract.fuel")
		}
		p.SmartContract.Fuel = n
	}
	if v := s.SmartContract.Memory; v != 0 {
		n, err := core.NewNonZeroU64(v)
		if err != nil {
			return core.Parameters{}, utils.Wrap(err, "smart_contract.memory")
		}
		p.SmartContract.Memory = n
	}

	if v := s.Executor.Fuel; v != 0 {
		n, err := core.NewNonZeroU64(v)
		if err != nil {
			return core.Parameters{}, utils.Wrap(err, "executor.fuel")
		}
		p.Executor.Fuel = n
	}
	if v := s.Executor.Memory; v != 0 {
		n, err := core.NewNonZeroU64(v)
		if err != nil {
			return core.Parameters{}, utils.Wrap(err, "executor.memory")
		}
		p.Executor.Memory = n
	}

	return p, nil
}

// Load reads the YAML configuration file at path and applies environment
// overrides. A .env file is loaded first, if present: the file named by
// LEDGERCORE_ENV_FILE, or ".env" in the working directory.
func Load(path string) (*Config, error) {
	envPath := utils.EnvOrDefault("LEDGERCORE_ENV_FILE", ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, utils.Wrap(err, "load .env")
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.Wrap(err, fmt.Sprintf("read config %s", path))
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, utils.Wrap(err, fmt.Sprintf("parse config %s", path))
	}

	if v, ok := os.LookupEnv("LEDGERCORE_CHAIN_ID"); ok && v != "" {
		cfg.Network.ChainId = v
	}
	if v, ok := os.LookupEnv("LEDGERCORE_GENESIS_FILE"); ok && v != "" {
		cfg.Network.GenesisFile = v
	}
	cfg.Parameters.Block.MaxTransactions = utils.EnvOrDefaultUint64(
		"LEDGERCORE_MAX_TRANSACTIONS", cfg.Parameters.Block.MaxTransactions)

	return &cfg, nil
}

// GenesisAccount is one pre-funded account entry in a genesis spec.
type GenesisAccount struct {
	Id       string            `yaml:"id"`
	Domain   string            `yaml:"domain"`
	Metadata map[string]string `yaml:"metadata"`
}

// GenesisSpec is the YAML-facing description of a genesis block: the chain
// id, the domains and accounts to seed, and the executor WASM to install via the mandatory leading Upgrade
// instruction, as the genesis structural rules require.
type GenesisSpec struct {
	ChainId         string           `yaml:"chain_id"`
	ExecutorWasmHex string           `yaml:"executor_wasm_hex"`
	Domains         []string         `yaml:"domains"`
	Accounts        []GenesisAccount `yaml:"accounts"`
	CreationTimeMs  uint64           `yaml:"creation_time_ms"`
}

// LoadGenesisSpec reads and parses a genesis YAML file.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.Wrap(err, fmt.Sprintf("read genesis spec %s", path))
	}
	var spec GenesisSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, utils.Wrap(err, fmt.Sprintf("parse genesis spec %s", path))
	}
	return &spec, nil
}

func hexDecode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex string")
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		var hi, lo byte
		var ok1, ok2 bool
		hi, ok1 = hexNibble(s[2*i])
		lo, ok2 = hexNibble(s[2*i+1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("invalid hex string %q", s)
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	default:
		return 0, false
	}
}

// BuildGenesisBlock assembles and signs the single-transaction-first
// genesis block from spec: a first transaction carrying exactly one
// Upgrade instruction (installing ExecutorWasmHex as the active executor),
// followed by one transaction per domain/account registration. authority
// signs every transaction and the block itself; topology index 0 is used
// since genesis has exactly one signer by convention.
func BuildGenesisBlock(spec *GenesisSpec, authority core.AccountId, priv *ecdsa.PrivateKey) (core.SignedBlockV1, error) {
	wasm, err := hexDecode(spec.ExecutorWasmHex)
	if err != nil {
		return core.SignedBlockV1{}, utils.Wrap(err, "decode executor_wasm_hex")
	}

	upgradeTx, err := signGenesisInstructions(spec, authority, priv, []core.Instruction{core.NewUpgrade(wasm)})
	if err != nil {
		return core.SignedBlockV1{}, err
	}
	txs := []core.SignedTransactionV1{upgradeTx}

	for _, d := range spec.Domains {
		domainId, err := core.ParseDomainId(d)
		if err != nil {
			return core.SignedBlockV1{}, utils.Wrap(err, fmt.Sprintf("domain %q", d))
		}
		ins := core.NewRegisterDomain(core.Domain{Id: domainId, Owner: authority})
		tx, err := signGenesisInstructions(spec, authority, priv, []core.Instruction{ins})
		if err != nil {
			return core.SignedBlockV1{}, err
		}
		txs = append(txs, tx)
	}

	for _, a := range spec.Accounts {
		accId, err := core.ParseAccountId(a.Id + "@" + a.Domain)
		if err != nil {
			return core.SignedBlockV1{}, utils.Wrap(err, fmt.Sprintf("account %q", a.Id))
		}
		candidate := make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			candidate[k] = v
		}
		md, err := core.NewMetadata(candidate)
		if err != nil {
			return core.SignedBlockV1{}, utils.Wrap(err, fmt.Sprintf("account %q metadata", a.Id))
		}
		ins := core.NewRegisterAccount(core.Account{Id: accId, Metadata: md})
		tx, err := signGenesisInstructions(spec, authority, priv, []core.Instruction{ins})
		if err != nil {
			return core.SignedBlockV1{}, err
		}
		txs = append(txs, tx)
	}

	creationMs := spec.CreationTimeMs
	maxTxCreation := uint64(0)
	for _, tx := range txs {
		if tx.Payload.CreationTime > maxTxCreation {
			maxTxCreation = tx.Payload.CreationTime
		}
	}
	if creationMs <= maxTxCreation {
		creationMs = maxTxCreation + 1
	}

	leaves := make([]core.Hash, len(txs))
	for i, tx := range txs {
		leaves[i] = tx.Hash()
	}
	root, err := core.MerkleRoot(leaves)
	if err != nil {
		return core.SignedBlockV1{}, utils.Wrap(err, "compute genesis merkle root")
	}

	header := core.BlockHeader{
		Height:           1,
		PrevBlockHash:    nil,
		TransactionsHash: root,
		CreationTimeMs:   creationMs,
	}
	payload, err := core.NewBlockPayload(header, txs)
	if err != nil {
		return core.SignedBlockV1{}, utils.Wrap(err, "build genesis block payload")
	}

	sig, err := signHeader(payload.Header, priv)
	if err != nil {
		return core.SignedBlockV1{}, utils.Wrap(err, "sign genesis block header")
	}

	return core.NewSignedBlock(payload, []core.BlockSignature{{TopologyIndex: 0, Signature: sig}}, nil)
}

func signGenesisInstructions(spec *GenesisSpec, authority core.AccountId, priv *ecdsa.PrivateKey, ins []core.Instruction) (core.SignedTransactionV1, error) {
	md, err := core.NewMetadata(nil)
	if err != nil {
		return core.SignedTransactionV1{}, err
	}
	payload := core.TransactionPayload{
		ChainId:      spec.ChainId,
		Authority:    authority,
		CreationTime: 0,
		Instructions: core.InstructionsExecutable(ins),
		Metadata:     md,
	}
	return core.SignTransaction(payload, priv)
}

// signHeader signs a block header hash the same way core.SignTransaction
// signs a transaction payload hash: secp256k1 over the raw digest.
func signHeader(h core.BlockHeader, priv *ecdsa.PrivateKey) ([]byte, error) {
	hash := h.Hash()
	return crypto.Sign(hash[:], priv)
}
