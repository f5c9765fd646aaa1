package main

import (
	"encoding/json"
	"log"
	"os"

	"github.com/docopt/docopt-go"

	"bringyour.com/collection"
)

const CollectionCtlVersion = "0.0.1"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `Collection control.

Load a json file containing an array of records into an entity list and
inspect it.

Usage:
    collectionctl list <file> [--sort_by=<attr>] [--id_attribute=<attr>]
    collectionctl get <file> --id=<id> [--id_attribute=<attr>]
    collectionctl dedupe <file> [--id_attribute=<attr>]

Options:
    -h --help              Show this screen.
    --version              Show version.
    --sort_by=<attr>       Keep the list ordered by this attribute.
    --id_attribute=<attr>  Attribute that holds the record id [default: id].
    --id=<id>              Record id to look up.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], CollectionCtlVersion)
	if err != nil {
		panic(err)
	}

	if list_, _ := opts.Bool("list"); list_ {
		listRecords(opts)
	} else if get_, _ := opts.Bool("get"); get_ {
		getRecord(opts)
	} else if dedupe_, _ := opts.Bool("dedupe"); dedupe_ {
		dedupeRecords(opts)
	}
}

// print the records in collection order
func listRecords(opts docopt.Opts) {
	list := newList(opts)
	list.RefreshAttrs(loadAttrsList(opts), nil)

	list.Each(func(index int, entity *collection.Entity) {
		b, err := json.Marshal(entity.Attrs())
		if err != nil {
			Err.Fatalf("Could not render record: %s\n", err)
		}
		Out.Printf("[%4d] %s %s", index, entity.ClientId(), string(b))
	})
}

// o(1) lookup by persistent id
func getRecord(opts docopt.Opts) {
	id, _ := opts.String("--id")

	list := newList(opts)
	list.RefreshAttrs(loadAttrsList(opts), nil)

	entity := list.GetById(id)
	if entity == nil {
		Err.Fatalf("Record not found: %s\n", id)
	}
	b, err := json.MarshalIndent(entity.Attrs(), "", "    ")
	if err != nil {
		Err.Fatalf("Could not render record: %s\n", err)
	}
	Out.Printf("%s", string(b))
}

// drop records whose persistent id is already present, using an add intent
// callback to veto the duplicates
func dedupeRecords(opts docopt.Opts) {
	list := newList(opts)

	unsub := list.AddAddCallback(func(event *collection.AddEvent) {
		if id, ok := list.EntityId(event.Entity); ok {
			if list.GetById(id) != nil {
				event.Prevent()
			}
		}
	})
	defer unsub()

	dropCount := 0
	for _, attrs := range loadAttrsList(opts) {
		if _, err := list.AddAttrs(attrs, nil); err != nil {
			dropCount += 1
		}
	}

	b, err := json.MarshalIndent(list.AttrsList(), "", "    ")
	if err != nil {
		Err.Fatalf("Could not render records: %s\n", err)
	}
	Out.Printf("%s", string(b))
	if 0 < dropCount {
		Err.Printf("Dropped %d duplicate records.\n", dropCount)
	}
}

func newList(opts docopt.Opts) *collection.EntityList {
	settings := collection.DefaultEntityListSettings()
	settings.EntityFunction = collection.NewEntity
	if idAttribute, err := opts.String("--id_attribute"); err == nil && idAttribute != "" {
		settings.IdAttribute = idAttribute
	}
	if sortBy, err := opts.String("--sort_by"); err == nil && sortBy != "" {
		settings.Comparator = func(entity *collection.Entity) any {
			return entity.Get(sortBy)
		}
	}
	return collection.NewEntityList(settings)
}

func loadAttrsList(opts docopt.Opts) []map[string]any {
	path, _ := opts.String("<file>")

	b, err := os.ReadFile(path)
	if err != nil {
		Err.Fatalf("Could not read %s: %s\n", path, err)
	}
	var attrsList []map[string]any
	if err := json.Unmarshal(b, &attrsList); err != nil {
		Err.Fatalf("Could not parse %s: %s\n", path, err)
	}
	return attrsList
}
