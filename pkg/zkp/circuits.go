package zkp

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// MaxAllowedRegions is the fixed width of the region circuit's allow-list.
const MaxAllowedRegions = 8

// dateScale separates the year from MMDD in a YYYYMMDD integer.
const dateScale = 10000

// MaxAge bounds both the secret age and the public threshold.
const MaxAge = 150

const (
	ageBits  = 8
	dateBits = 32
)

// AgeCircuit proves threshold <= age, where age is consistent with a committed
// date of birth evaluated at the public as_of date.
type AgeCircuit struct {
	Commitment frontend.Variable `gnark:",public"`
	Valid      frontend.Variable `gnark:",public"`
	Threshold  frontend.Variable `gnark:",public"`
	AsOf       frontend.Variable `gnark:",public"`

	Age       frontend.Variable `gnark:",secret"`
	Reference frontend.Variable `gnark:",secret"`
	Name      frontend.Variable `gnark:",secret"`
	BirthDate frontend.Variable `gnark:",secret"`
	Nonce     frontend.Variable `gnark:",secret"`
}

func (c *AgeCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(c.Valid, 1)

	if err := assertCommitment(api, c.Commitment, c.Reference, c.Name, c.BirthDate, c.Nonce); err != nil {
		return err
	}

	// Range checks keep the date arithmetic below from wrapping around the field.
	api.ToBinary(c.Age, ageBits)
	api.ToBinary(c.Threshold, ageBits)
	api.ToBinary(c.BirthDate, dateBits)
	api.ToBinary(c.AsOf, dateBits)
	api.AssertIsLessOrEqual(c.Age, MaxAge)
	api.AssertIsLessOrEqual(c.Threshold, c.Age)

	// birth_date + age*10000 <= as_of < birth_date + (age+1)*10000
	lower := api.Add(c.BirthDate, api.Mul(c.Age, dateScale))
	upper := api.Add(c.BirthDate, api.Mul(api.Add(c.Age, 1), dateScale))
	api.AssertIsLessOrEqual(lower, c.AsOf)
	api.AssertIsLessOrEqual(api.Add(c.AsOf, 1), upper)

	return nil
}

// RegionCircuit proves the committed region is one of the public allowed regions.
type RegionCircuit struct {
	Commitment     frontend.Variable                    `gnark:",public"`
	Valid          frontend.Variable                    `gnark:",public"`
	AllowedRegions [MaxAllowedRegions]frontend.Variable `gnark:",public"`

	Region    frontend.Variable `gnark:",secret"`
	Reference frontend.Variable `gnark:",secret"`
	Nonce     frontend.Variable `gnark:",secret"`
}

func (c *RegionCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(c.Valid, 1)

	if err := assertCommitment(api, c.Commitment, c.Reference, c.Region, c.Nonce); err != nil {
		return err
	}

	product := frontend.Variable(1)
	for i := range c.AllowedRegions {
		product = api.Mul(product, api.Sub(c.Region, c.AllowedRegions[i]))
	}
	api.AssertIsEqual(product, 0)

	return nil
}

// UniquenessCircuit binds a nullifier for (reference, scope, epoch) to an
// identity commitment over (reference, nonce).
type UniquenessCircuit struct {
	Commitment frontend.Variable `gnark:",public"`
	Valid      frontend.Variable `gnark:",public"`
	Nullifier  frontend.Variable `gnark:",public"`
	Scope      frontend.Variable `gnark:",public"`
	Epoch      frontend.Variable `gnark:",public"`

	Reference frontend.Variable `gnark:",secret"`
	Nonce     frontend.Variable `gnark:",secret"`
}

func (c *UniquenessCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(c.Valid, 1)

	if err := assertCommitment(api, c.Nullifier, c.Reference, c.Scope, c.Epoch); err != nil {
		return err
	}
	return assertCommitment(api, c.Commitment, c.Reference, c.Nonce)
}

func assertCommitment(api frontend.API, expected frontend.Variable, inputs ...frontend.Variable) error {
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	hasher.Write(inputs...)
	api.AssertIsEqual(hasher.Sum(), expected)
	return nil
}
