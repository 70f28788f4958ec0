package app

import (
	"github.com/vk/renconstruct/internal/task"
	"github.com/vk/renconstruct/tasks/clean"
	"github.com/vk/renconstruct/tasks/convertimages"
	"github.com/vk/renconstruct/tasks/keystore"
	"github.com/vk/renconstruct/tasks/largeaddress"
	"github.com/vk/renconstruct/tasks/notarize"
	patchtask "github.com/vk/renconstruct/tasks/patch"
)

// coreTasks is the definitive list of all tasks that are compiled into
// the renconstruct binary.
var coreTasks = []task.Module{
	patchtask.Module{},
	largeaddress.Module{},
	keystore.Module{},
	notarize.Module{},
	convertimages.Module{},
	clean.Module{},
}
