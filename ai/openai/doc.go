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

// Package openai provides an ai.Embedder backed by OpenAI-compatible APIs.
//
// The langchaingo client speaks both the plain OpenAI dialect (OpenAI itself,
// Ollama, LocalAI, vLLM) and Azure OpenAI deployments.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithHost("https://contoso.openai.azure.com"),
//	    ai.WithModel("text-embedding-ada-002"),
//	    ai.WithToken(os.Getenv("AZURE_OPENAI_KEY")),
//	    ai.WithAzure(ai.DefaultAzureAPIVersion),
//	)
//
//	embedder, err := openai.NewEmbedder(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vectors, err := embedder.EmbedTexts(ctx, []string{"first", "second"})
package openai
