// Copyright 2025 OpenMerit Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ledger

import (
	"errors"
	"fmt"

	"github.com/openmerit/meritd/database"
	"github.com/openmerit/meritd/database/models"
)

// Protocol parameter names. Every tunable lives in the param table so
// governance can adjust it at runtime.
const (
	ParamMinPoolStake         = "matchingpool.minPoolStake"
	ParamMinApplicationStake  = "matchingpool.minApplicationStake"
	ParamFeeBps               = "matchingpool.feeBps"
	ParamFeeCollector         = "matchingpool.feeCollector"
	ParamMinPoolDuration      = "matchingpool.minPoolDuration"
	ParamMaxPoolDuration      = "matchingpool.maxPoolDuration"
	ParamMinOracleStake       = "oracle.minOracleStake"
	ParamMinChallengeStake    = "oracle.minChallengeStake"
	ParamOracleCooldown       = "oracle.cooldown"
	ParamChallengeWindow      = "oracle.challengeWindow"
	ParamSlashBps             = "oracle.slashBps"
	ParamMaxFailedChallenges  = "oracle.maxFailedChallenges"
	ParamReputationWeightCap  = "oracle.reputationWeightCap"
	ParamEndorseCooldown      = "registry.endorseCooldown"
	ParamDefaultCredentialTTL = "registry.defaultCredentialTTL"
	ParamVotingDelay          = "governance.votingDelay"
	ParamVotingPeriod         = "governance.votingPeriod"
	ParamExecutionDelay       = "governance.executionDelay"
	ParamEmergencyVotingDelay = "governance.emergencyVotingDelay"
	ParamEmergencyVotingPeriod = "governance.emergencyVotingPeriod"
	ParamQuorum               = "governance.quorum"
	ParamEmergencyQuorum      = "governance.emergencyQuorum"
	ParamProposalThreshold    = "governance.proposalThreshold"
)

const (
	hourSeconds = 3600
	daySeconds  = 86400
	yearSeconds = 365 * daySeconds
)

// defaultUintParams seeds the param table on first start. Durations are in
// seconds, rates in basis points.
var defaultUintParams = map[string]uint64{
	ParamMinPoolStake:          100,
	ParamMinApplicationStake:   10,
	ParamFeeBps:                250,
	ParamMinPoolDuration:       daySeconds,
	ParamMaxPoolDuration:       365 * daySeconds,
	ParamMinOracleStake:        500,
	ParamMinChallengeStake:     50,
	ParamOracleCooldown:        hourSeconds,
	ParamChallengeWindow:       7 * daySeconds,
	ParamSlashBps:              1000,
	ParamMaxFailedChallenges:   3,
	ParamReputationWeightCap:   10,
	ParamEndorseCooldown:       30 * daySeconds,
	ParamDefaultCredentialTTL:  2 * yearSeconds,
	ParamVotingDelay:           daySeconds,
	ParamVotingPeriod:          7 * daySeconds,
	ParamExecutionDelay:        2 * daySeconds,
	ParamEmergencyVotingDelay:  hourSeconds,
	ParamEmergencyVotingPeriod: daySeconds,
	ParamQuorum:                1000,
	ParamEmergencyQuorum:       500,
	ParamProposalThreshold:     800,
}

var defaultStringParams = map[string]string{
	ParamFeeCollector: "fees",
}

// uintParamBounds constrains governance updates. Basis-point rates may not
// exceed 10000, windows and stakes must be non-zero.
type paramBounds struct {
	min uint64
	max uint64
}

var uintParamBounds = map[string]paramBounds{
	ParamFeeBps:                {min: 0, max: 10_000},
	ParamSlashBps:              {min: 1, max: 10_000},
	ParamMinPoolStake:          {min: 1, max: ^uint64(0)},
	ParamMinApplicationStake:   {min: 1, max: ^uint64(0)},
	ParamMinOracleStake:        {min: 1, max: ^uint64(0)},
	ParamMinChallengeStake:     {min: 1, max: ^uint64(0)},
	ParamMaxFailedChallenges:   {min: 1, max: 100},
	ParamReputationWeightCap:   {min: 1, max: 1000},
	ParamOracleCooldown:        {min: 1, max: yearSeconds},
	ParamChallengeWindow:       {min: 1, max: yearSeconds},
	ParamEndorseCooldown:       {min: 1, max: yearSeconds},
	ParamDefaultCredentialTTL:  {min: 1, max: 100 * yearSeconds},
	ParamMinPoolDuration:       {min: 1, max: 100 * yearSeconds},
	ParamMaxPoolDuration:       {min: 1, max: 100 * yearSeconds},
	ParamVotingDelay:           {min: 1, max: yearSeconds},
	ParamVotingPeriod:          {min: 1, max: yearSeconds},
	ParamExecutionDelay:        {min: 0, max: yearSeconds},
	ParamEmergencyVotingDelay:  {min: 1, max: yearSeconds},
	ParamEmergencyVotingPeriod: {min: 1, max: yearSeconds},
	ParamQuorum:                {min: 1, max: ^uint64(0)},
	ParamEmergencyQuorum:       {min: 1, max: ^uint64(0)},
	ParamProposalThreshold:     {min: 0, max: ^uint64(0)},
}

// seedParams writes default values for any parameter missing from the param
// table. Existing rows are left alone so governance changes survive restarts.
func seedParams(db *database.Database, txn *database.Txn) error {
	for name, value := range defaultUintParams {
		_, err := db.GetParam(name, txn)
		if err == nil {
			continue
		}
		if !errors.Is(err, models.ErrParamNotFound) {
			return err
		}
		err = db.SetParam(
			&models.Param{Name: name, UintValue: value},
			txn,
		)
		if err != nil {
			return err
		}
	}
	for name, value := range defaultStringParams {
		_, err := db.GetParam(name, txn)
		if err == nil {
			continue
		}
		if !errors.Is(err, models.ErrParamNotFound) {
			return err
		}
		err = db.SetParam(
			&models.Param{Name: name, StringValue: value},
			txn,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *LedgerState) paramUint(
	name string,
	txn *database.Txn,
) (uint64, error) {
	param, err := l.db.GetParam(name, txn)
	if err != nil {
		if errors.Is(err, models.ErrParamNotFound) {
			if def, ok := defaultUintParams[name]; ok {
				return def, nil
			}
		}
		return 0, fmt.Errorf("lookup param %s: %w", name, err)
	}
	return param.UintValue, nil
}

func (l *LedgerState) paramString(
	name string,
	txn *database.Txn,
) (string, error) {
	param, err := l.db.GetParam(name, txn)
	if err != nil {
		if errors.Is(err, models.ErrParamNotFound) {
			if def, ok := defaultStringParams[name]; ok {
				return def, nil
			}
		}
		return "", fmt.Errorf("lookup param %s: %w", name, err)
	}
	return param.StringValue, nil
}

// validateUintParam checks a proposed parameter value against its bounds
func validateUintParam(name string, value uint64) error {
	bounds, ok := uintParamBounds[name]
	if !ok {
		return validationErr("param", fmt.Sprintf("unknown parameter %s", name))
	}
	if value < bounds.min || value > bounds.max {
		return validationErr(
			"param",
			fmt.Sprintf(
				"%s value %d outside [%d, %d]",
				name,
				value,
				bounds.min,
				bounds.max,
			),
		)
	}
	return nil
}
