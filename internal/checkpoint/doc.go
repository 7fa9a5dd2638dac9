// Package checkpoint saves and loads trained classifiers.
//
// A checkpoint is a single binary file:
//
//	Format Structure:
//	  [4 bytes: Magic "NNCG"]
//	  [4 bytes: Version (uint32 LE)]
//	  [4 bytes: Flags (uint32 LE)]
//	  [4 bytes: Reserved]
//	  [8 bytes: Header Size (uint64 LE)]
//	  [8 bytes: Data Size (uint64 LE)]
//	  [32 bytes: SHA-256 of header JSON followed by tensor data]
//	  [Header: JSON hyperparameters, alphabets, tensor table, metadata]
//	  [Tensor data: little-endian float64, row-major]
//
// Example usage:
//
//	ckpt := checkpoint.New(params, hp)
//	ckpt.Metadata["epoch"] = "3"
//	if err := checkpoint.Save("model.nncg", ckpt); err != nil {
//	    log.Fatal(err)
//	}
//
//	loaded, err := checkpoint.Load("model.nncg")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	driver := model.NewDriver(loaded.Params, loaded.HyperParams, 0)
package checkpoint
