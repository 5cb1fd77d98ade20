/*
 *
 *  * Licensed to the Apache Software Foundation (ASF) under one or more
 *  * contributor license agreements.  See the NOTICE file distributed with
 *  * this work for additional information regarding copyright ownership.
 *  * The ASF licenses this file to You under the Apache License, Version 2.0
 *  * (the "License"); you may not use this file except in compliance with
 *  * the License.  You may obtain a copy of the License at
 *  *
 *  *     http://www.apache.org/licenses/LICENSE-2.0
 *  *
 *  * Unless required by applicable law or agreed to in writing, software
 *  * distributed under the License is distributed on an "AS IS" BASIS,
 *  * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *  * See the License for the specific language governing permissions and
 *  * limitations under the License.
 *
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/IceFireDB/IceFireDB-Gateway/pkg/config"
	"github.com/IceFireDB/IceFireDB-Gateway/pkg/fetcher"
	"github.com/IceFireDB/IceFireDB-Gateway/pkg/resolver"
)

var resolveCommand = cli.Command{
	Name:      "resolve",
	Usage:     "print the gateway url for an ipfs uri",
	ArgsUsage: "<uri>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return errors.New("resolve takes exactly one uri")
		}
		uri := c.Args().First()
		r := resolver.New(config.Get().IPFS.Gateway)
		fmt.Printf("%s\t%s\n", resolver.Classify(uri), r.Resolve(uri))
		if c, err := resolver.RootCID(uri); err == nil {
			if info, err := resolver.Describe(c); err == nil {
				fmt.Printf("cid\t%s (v%d, %s)\n", info.CID, info.Version, info.Hash)
			}
		}
		return nil
	},
}

var fetchCommand = cli.Command{
	Name:      "fetch",
	Usage:     "fetch and print the json metadata behind a uri",
	ArgsUsage: "<uri>",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "endpoint,e",
			Usage: "proxy endpoint to fetch through, e.g. http://127.0.0.1:3000/api/proxy (direct when empty)",
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return errors.New("fetch takes exactly one uri")
		}
		cfg := config.Get()
		f, err := fetcher.New(fetcher.Options{
			Endpoint: c.String("endpoint"),
			Timeout:  cfg.Fetcher.Timeout,
			Resolver: resolver.New(cfg.IPFS.Gateway),
		})
		if err != nil {
			return err
		}
		meta, err := f.Fetch(context.Background(), c.Args().First())
		if err != nil {
			return fmt.Errorf("%s: %w", fetcher.KindOf(err), err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	},
}
