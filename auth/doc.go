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

// Package auth resolves the credentials used to call the document repository.
//
// A CallContext is created per logical request, either for the application
// identity (ForApp, resolved immediately) or for an end user (ForUser,
// resolved on first use through an on-behalf-of exchange). A Resolver
// performs the exchange at most once per context:
//
//	exchanger, err := auth.NewEntraExchanger(cfg, nil)
//	resolver, err := auth.NewResolver(exchanger, logger)
//
//	cc := auth.ForUser(bearer)
//	token, err := resolver.Token(ctx, cc) // exchanges
//	token, err = resolver.Token(ctx, cc)  // cached
package auth
