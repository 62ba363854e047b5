// Copyright 2025 Poiesic Systems
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

// Package graph is the document repository client. It searches SharePoint and
// OneDrive through the Microsoft Graph search API and fetches drive item
// metadata, including the pre-authenticated download URL used by chunkers.
//
// GetItem doubles as the access check: Graph only returns an item the acting
// identity can read, so any failure means "not accessible".
package graph
