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

package types

import "errors"

// ErrBlobKeyNotFound is returned by blob operations when a key is missing
var ErrBlobKeyNotFound = errors.New("blob key not found")

// ErrNilTxn is returned when a nil transaction is passed to a store operation
var ErrNilTxn = errors.New("nil transaction")

// ErrTxnFinished is returned when a transaction has already been committed or
// rolled back
var ErrTxnFinished = errors.New("transaction already finished")

// ErrBlobStoreUnavailable is returned when the blob store is not configured
var ErrBlobStoreUnavailable = errors.New("blob store unavailable")
