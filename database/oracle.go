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

package database

import (
	"github.com/openmerit/meritd/database/models"
)

// GetOracle returns the oracle record for a participant
func (d *Database) GetOracle(
	participant string,
	txn *Txn,
) (models.OracleRecord, error) {
	tmpOracle := models.OracleRecord{}
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	result := txn.Metadata().
		Where("participant = ?", participant).
		First(&tmpOracle)
	if result.Error != nil {
		return tmpOracle, mapNotFound(result.Error, models.ErrOracleNotFound)
	}
	return tmpOracle, nil
}

// SetOracle creates or updates an oracle record
func (d *Database) SetOracle(
	oracle *models.OracleRecord,
	txn *Txn,
) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Metadata().Save(oracle).Error
}

// ActiveOracleCount returns the number of active oracle registrations
func (d *Database) ActiveOracleCount(txn *Txn) (int64, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var count int64
	result := txn.Metadata().
		Model(&models.OracleRecord{}).
		Where("active = ?", true).
		Count(&count)
	return count, result.Error
}

// GetEvaluation returns an evaluation by id
func (d *Database) GetEvaluation(
	evaluationId uint,
	txn *Txn,
) (models.Evaluation, error) {
	tmpEvaluation := models.Evaluation{}
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	result := txn.Metadata().First(&tmpEvaluation, evaluationId)
	if result.Error != nil {
		return tmpEvaluation, mapNotFound(
			result.Error,
			models.ErrEvaluationNotFound,
		)
	}
	return tmpEvaluation, nil
}

// SetEvaluation creates or updates an evaluation row
func (d *Database) SetEvaluation(
	evaluation *models.Evaluation,
	txn *Txn,
) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Metadata().Save(evaluation).Error
}

// EvaluationsBySubject returns all evaluations recorded against a subject
func (d *Database) EvaluationsBySubject(
	subject string,
	txn *Txn,
) ([]models.Evaluation, error) {
	var ret []models.Evaluation
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	result := txn.Metadata().
		Where("subject = ?", subject).
		Order("id").
		Find(&ret)
	return ret, result.Error
}

// GetReputation returns the running reputation for a subject, or found=false
// when the subject has never been evaluated
func (d *Database) GetReputation(
	subject string,
	txn *Txn,
) (models.Reputation, bool, error) {
	tmpReputation := models.Reputation{}
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var ret []models.Reputation
	result := txn.Metadata().
		Where("subject = ?", subject).
		Limit(1).
		Find(&ret)
	if result.Error != nil {
		return tmpReputation, false, result.Error
	}
	if len(ret) == 0 {
		return tmpReputation, false, nil
	}
	return ret[0], true, nil
}

// SetReputation creates or updates a reputation row
func (d *Database) SetReputation(
	reputation *models.Reputation,
	txn *Txn,
) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Metadata().Save(reputation).Error
}

// GetChallenge returns a challenge by id
func (d *Database) GetChallenge(
	challengeId uint,
	txn *Txn,
) (models.Challenge, error) {
	tmpChallenge := models.Challenge{}
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	result := txn.Metadata().First(&tmpChallenge, challengeId)
	if result.Error != nil {
		return tmpChallenge, mapNotFound(
			result.Error,
			models.ErrChallengeNotFound,
		)
	}
	return tmpChallenge, nil
}

// SetChallenge creates or updates a challenge row
func (d *Database) SetChallenge(
	challenge *models.Challenge,
	txn *Txn,
) error {
	if txn == nil {
		txn = d.Transaction(true)
		defer txn.Commit() //nolint:errcheck
	}
	return txn.Metadata().Save(challenge).Error
}

// OpenChallengeForEvaluation returns the unresolved challenge against an
// evaluation, or found=false when there is none. At most one can be open.
func (d *Database) OpenChallengeForEvaluation(
	evaluationId uint,
	txn *Txn,
) (models.Challenge, bool, error) {
	tmpChallenge := models.Challenge{}
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var ret []models.Challenge
	result := txn.Metadata().
		Where("evaluation_id = ? AND resolved = ?", evaluationId, false).
		Limit(1).
		Find(&ret)
	if result.Error != nil {
		return tmpChallenge, false, result.Error
	}
	if len(ret) == 0 {
		return tmpChallenge, false, nil
	}
	return ret[0], true, nil
}

// OpenChallengesByEvaluator returns unresolved challenges against any
// evaluation submitted by the given evaluator
func (d *Database) OpenChallengesByEvaluator(
	evaluator string,
	txn *Txn,
) ([]models.Challenge, error) {
	var ret []models.Challenge
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	result := txn.Metadata().
		Joins(
			"JOIN evaluation ON evaluation.id = challenge.evaluation_id",
		).
		Where("evaluation.evaluator = ? AND challenge.resolved = ?",
			evaluator, false).
		Find(&ret)
	return ret, result.Error
}
