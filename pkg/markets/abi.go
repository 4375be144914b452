package markets

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// bombettaABIJSON is the UniversalBombetta (request market) contract ABI:
// bid()/resolve() plus the activeProofRequestData() dedup accessor and the
// Bid/Resolve events pkg/tracker filters on. Field order mirrors
// pkg/intent.RequestCommitment and pkg/bidder's abiProofRequest, grounded on
// original_source/crates/taralli-primitives/src/markets.rs's UniversalBombetta
// references (the original leans on alloy's sol! macro rather than a
// standalone ABI JSON file; this is the Go-side equivalent contract
// description pkg/rpcclient's ABI-driven CallContract/SendTransaction need).
const bombettaABIJSON = `[
	{"type":"function","name":"bid","stateMutability":"payable","inputs":[
		{"name":"proofRequest","type":"tuple","components":[
			{"name":"signer","type":"address"},
			{"name":"market","type":"address"},
			{"name":"nonce","type":"uint256"},
			{"name":"rewardToken","type":"address"},
			{"name":"maxRewardAmount","type":"uint256"},
			{"name":"minRewardAmount","type":"uint256"},
			{"name":"minimumStake","type":"uint128"},
			{"name":"startAuctionTimestamp","type":"uint64"},
			{"name":"endAuctionTimestamp","type":"uint64"},
			{"name":"provingTime","type":"uint32"},
			{"name":"inputsCommitment","type":"bytes32"},
			{"name":"extraData","type":"bytes"}
		]},
		{"name":"signature","type":"bytes"}
	],"outputs":[]},
	{"type":"function","name":"resolve","stateMutability":"nonpayable","inputs":[
		{"name":"intentId","type":"bytes32"},
		{"name":"opaqueSubmission","type":"bytes"},
		{"name":"partialCommitment","type":"bytes32"}
	],"outputs":[]},
	{"type":"function","name":"activeProofRequestData","stateMutability":"view","inputs":[
		{"name":"intentId","type":"bytes32"}
	],"outputs":[{"name":"requester","type":"address"}]},
	{"type":"event","name":"Bid","inputs":[
		{"name":"bidder","type":"address","indexed":true},
		{"name":"intentId","type":"bytes32","indexed":true}
	]},
	{"type":"event","name":"Resolve","inputs":[
		{"name":"prover","type":"address","indexed":true},
		{"name":"intentId","type":"bytes32","indexed":true}
	]}
]`

// porchettaABIJSON is UniversalPorchetta (offer market)'s counterpart:
// identical bid/resolve/Bid/Resolve shapes, with the offer's fixed
// reward/stake fields in place of the request's min/max reward pair.
const porchettaABIJSON = `[
	{"type":"function","name":"bid","stateMutability":"payable","inputs":[
		{"name":"proofOffer","type":"tuple","components":[
			{"name":"signer","type":"address"},
			{"name":"market","type":"address"},
			{"name":"nonce","type":"uint256"},
			{"name":"rewardToken","type":"address"},
			{"name":"rewardAmount","type":"uint256"},
			{"name":"stakeToken","type":"address"},
			{"name":"stakeAmount","type":"uint256"},
			{"name":"startAuctionTimestamp","type":"uint64"},
			{"name":"endAuctionTimestamp","type":"uint64"},
			{"name":"provingTime","type":"uint32"},
			{"name":"inputsCommitment","type":"bytes32"},
			{"name":"extraData","type":"bytes"}
		]},
		{"name":"signature","type":"bytes"}
	],"outputs":[]},
	{"type":"function","name":"resolve","stateMutability":"nonpayable","inputs":[
		{"name":"intentId","type":"bytes32"},
		{"name":"opaqueSubmission","type":"bytes"},
		{"name":"partialCommitment","type":"bytes32"}
	],"outputs":[]},
	{"type":"function","name":"activeProofOfferData","stateMutability":"view","inputs":[
		{"name":"intentId","type":"bytes32"}
	],"outputs":[{"name":"provider","type":"address"}]},
	{"type":"event","name":"Bid","inputs":[
		{"name":"bidder","type":"address","indexed":true},
		{"name":"intentId","type":"bytes32","indexed":true}
	]},
	{"type":"event","name":"Resolve","inputs":[
		{"name":"prover","type":"address","indexed":true},
		{"name":"intentId","type":"bytes32","indexed":true}
	]}
]`

// BombettaABI parses the UniversalBombetta contract ABI every request-side
// bidder/tracker/resolver binds against.
func BombettaABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(bombettaABIJSON))
}

// PorchettaABI parses the UniversalPorchetta contract ABI every offer-side
// bidder/tracker/resolver binds against.
func PorchettaABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(porchettaABIJSON))
}
