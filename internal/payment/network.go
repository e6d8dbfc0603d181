package payment

// Asset is the ERC-20 token a network settles in.
type Asset struct {
	Address  string
	Name     string
	Version  string
	Decimals int32
}

const usdcDecimals = 6

var usdcByNetwork = map[string]Asset{
	"base-sepolia": {
		Address:  "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Name:     "USDC",
		Version:  "2",
		Decimals: usdcDecimals,
	},
	"base": {
		Address:  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Name:     "USD Coin",
		Version:  "2",
		Decimals: usdcDecimals,
	},
	"avalanche-fuji": {
		Address:  "0x5425890298aed601595a70AB815c96711a31Bc65",
		Name:     "USD Coin",
		Version:  "2",
		Decimals: usdcDecimals,
	},
	"avalanche": {
		Address:  "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
		Name:     "USD Coin",
		Version:  "2",
		Decimals: usdcDecimals,
	},
}

// USDC returns the USDC asset for network.
func USDC(network string) (Asset, bool) {
	a, ok := usdcByNetwork[network]
	return a, ok
}
