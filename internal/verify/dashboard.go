package verify

import (
	"fmt"
	"strings"
)

// networkSlugs maps well-known network ids to their dashboard slugs.
// Unknown ids are used verbatim.
var networkSlugs = map[string]string{
	"1":     "main",
	"3":     "ropsten",
	"4":     "rinkeby",
	"5":     "goerli",
	"42":    "kovan",
	"56":    "binance",
	"97":    "rialto",
	"99":    "poa",
	"100":   "xdai",
	"137":   "matic-mainnet",
	"15001": "matic-testnetv3",
	"80001": "matic-mumbai",
}

// NetworkSlug returns the dashboard slug for a network id.
func NetworkSlug(networkID string) string {
	if slug, ok := networkSlugs[networkID]; ok {
		return slug
	}
	return networkID
}

// ContractURL builds the dashboard link to a verified contract.
func ContractURL(dashboardURL, networkID, address string) string {
	return fmt.Sprintf("%s/contract/%s/%s",
		strings.TrimRight(dashboardURL, "/"), NetworkSlug(networkID), strings.ToLower(address))
}

// ProjectContractURL builds the dashboard link to a contract inside a
// project.
func ProjectContractURL(dashboardURL, username, slug, networkID, address string) string {
	return fmt.Sprintf("%s/%s/%s/contract/%s/%s",
		strings.TrimRight(dashboardURL, "/"), username, slug, NetworkSlug(networkID), strings.ToLower(address))
}
