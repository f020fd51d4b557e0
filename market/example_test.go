// SPDX-License-Identifier: MIT

package market_test

import (
	"context"
	"fmt"

	"github.com/katalvlaran/basinflow/horizon"
	"github.com/katalvlaran/basinflow/market"
)

func ExampleEngine_Clear() {
	dist := market.DistanceTable{}
	dist.Set("amman", "azraq", 20)

	e, err := market.NewEngine(dist, market.DefaultOptions())
	if err != nil {
		panic(err)
	}
	out := e.Clear(context.Background(), market.Period{
		Date: horizon.Date{Year: 2020, Month: 7},
		Buyers: []market.Buyer{{
			ID: "amman-hh", Location: "amman", Units: 100, PipedPerUnit: 1, Sigma: -2, Sigma2: 6,
		}},
		Sellers: []market.Seller{{
			ID: "azraq", Location: "azraq",
			Farms: []market.FarmOffer{{ID: "farm-1", Quantity: 50 * market.DaysPerMonth, Price: 2}},
		}},
	})
	fmt.Println(out.Status)
	fmt.Printf("sold %.1f at %.2f\n", out.Sellers["azraq"].Sold, out.Buyers["amman-hh"].Price)
	// Output:
	// solved
	// sold 50.0 at 4.00
}
