// Package compute adapts the vSphere API to the workflow's backend port.
package compute

import (
	"context"
	"fmt"
	"net/url"

	"vmbook/internal/pkg/clock"
	"vmbook/internal/pkg/config"
	"vmbook/internal/pkg/errs"

	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"
)

// diskNameTimeLayout keeps clone names unique and sortable per run.
const diskNameTimeLayout = "20060102150405"

// VSphereBackend drives one target VM through the disk-swap sequence. All
// operations wait for their vSphere task to complete before returning.
type VSphereBackend struct {
	client *govmomi.Client
	finder *find.Finder
	dc     *object.Datacenter
	cfg    config.ComputeConfig
	clock  clock.Clock
}

func NewVSphereBackend(ctx context.Context, cfg config.ComputeConfig, clk clock.Clock) (*VSphereBackend, func(), error) {
	u, err := soapURL(cfg)
	if err != nil {
		return nil, nil, err
	}

	client, err := govmomi.NewClient(ctx, u, cfg.VSphereInsecure)
	if err != nil {
		return nil, nil, errs.Wrap(err, "failed to connect to vSphere")
	}

	finder := find.NewFinder(client.Client, true)
	dc, err := finder.DefaultDatacenter(ctx)
	if err != nil {
		return nil, nil, errs.Wrap(err, "failed to resolve datacenter")
	}
	finder.SetDatacenter(dc)

	cleanup := func() {
		_ = client.Logout(context.Background())
	}
	return &VSphereBackend{
		client: client,
		finder: finder,
		dc:     dc,
		cfg:    cfg,
		clock:  clk,
	}, cleanup, nil
}

func soapURL(cfg config.ComputeConfig) (*url.URL, error) {
	u, err := soap.ParseURL(cfg.VSphereURL)
	if err != nil {
		return nil, errs.Wrap(err, "failed to parse vSphere URL")
	}
	u.User = url.UserPassword(cfg.VSphereUser, cfg.VSpherePassword)
	return u, nil
}

func (b *VSphereBackend) targetVM(ctx context.Context) (*object.VirtualMachine, error) {
	vm, err := b.finder.VirtualMachine(ctx, b.cfg.TargetVM)
	if err != nil {
		return nil, errs.Wrapf(err, "target VM %s not found", b.cfg.TargetVM)
	}
	return vm, nil
}

// Deallocate powers the VM off. An already powered-off VM is not an error.
func (b *VSphereBackend) Deallocate(ctx context.Context) error {
	vm, err := b.targetVM(ctx)
	if err != nil {
		return err
	}

	state, err := vm.PowerState(ctx)
	if err != nil {
		return errs.Wrap(err, "failed to read power state")
	}
	if state == types.VirtualMachinePowerStatePoweredOff {
		return nil
	}

	task, err := vm.PowerOff(ctx)
	if err != nil {
		return errs.Wrap(err, "failed to power off VM")
	}
	if err := task.Wait(ctx); err != nil {
		return errs.Wrap(err, "power off task failed")
	}
	return nil
}

// CreateDisk clones the configured template disk to a fresh, timestamped copy
// on the datastore and returns the new disk's name.
func (b *VSphereBackend) CreateDisk(ctx context.Context, prefix string) (string, error) {
	diskName := fmt.Sprintf("%s-%s", prefix, b.clock.Now().Format(diskNameTimeLayout))
	dest := b.datastorePath(diskName)

	dm := object.NewVirtualDiskManager(b.client.Client)
	task, err := dm.CopyVirtualDisk(ctx, b.cfg.SourceDiskPath, b.dc, dest, b.dc, nil, true)
	if err != nil {
		return "", errs.Wrap(err, "failed to start disk copy")
	}
	if err := task.Wait(ctx); err != nil {
		return "", errs.Wrap(err, "disk copy task failed")
	}
	return diskName, nil
}

// AttachDisk repoints the VM's primary disk at the freshly cloned backing
// file. The VM must be powered off.
func (b *VSphereBackend) AttachDisk(ctx context.Context, diskName string) error {
	vm, err := b.targetVM(ctx)
	if err != nil {
		return err
	}

	devices, err := vm.Device(ctx)
	if err != nil {
		return errs.Wrap(err, "failed to list VM devices")
	}
	disks := devices.SelectByType((*types.VirtualDisk)(nil))
	if len(disks) == 0 {
		return errs.New("target VM has no virtual disk to replace")
	}

	disk, ok := disks[0].(*types.VirtualDisk)
	if !ok {
		return errs.New("unexpected device type for primary disk")
	}
	backing, ok := disk.Backing.(*types.VirtualDiskFlatVer2BackingInfo)
	if !ok {
		return errs.New("primary disk has unsupported backing type")
	}
	backing.FileName = b.datastorePath(diskName)

	spec := types.VirtualMachineConfigSpec{
		DeviceChange: []types.BaseVirtualDeviceConfigSpec{
			&types.VirtualDeviceConfigSpec{
				Operation: types.VirtualDeviceConfigSpecOperationEdit,
				Device:    disk,
			},
		},
	}
	task, err := vm.Reconfigure(ctx, spec)
	if err != nil {
		return errs.Wrap(err, "failed to start VM reconfigure")
	}
	if err := task.Wait(ctx); err != nil {
		return errs.Wrap(err, "VM reconfigure task failed")
	}
	return nil
}

func (b *VSphereBackend) Start(ctx context.Context) error {
	vm, err := b.targetVM(ctx)
	if err != nil {
		return err
	}

	task, err := vm.PowerOn(ctx)
	if err != nil {
		return errs.Wrap(err, "failed to power on VM")
	}
	if err := task.Wait(ctx); err != nil {
		return errs.Wrap(err, "power on task failed")
	}
	return nil
}

func (b *VSphereBackend) datastorePath(diskName string) string {
	return fmt.Sprintf("[%s] %s.vmdk", b.cfg.Datastore, diskName)
}
